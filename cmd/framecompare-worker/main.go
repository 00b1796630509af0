package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/app"
	"github.com/tendant/framecompare/internal/config"
	"github.com/tendant/framecompare/internal/dbosruntime"
	"github.com/tendant/framecompare/internal/handlers"
	"github.com/tendant/framecompare/internal/logger"
	"github.com/tendant/framecompare/internal/metrics"
	"github.com/tendant/framecompare/internal/tracing"
	"github.com/tendant/framecompare/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting framecompare worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "framecompare-worker")
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	components, err := app.Build(ctx, cfg, log, app.Progress{})
	fatalOnErr(err, "build components")
	defer components.Close()

	// DBOS is optional: without it runs complete inside the request
	var dbosRuntime *dbosruntime.Runtime
	if cfg.DBOSDatabaseURL != "" {
		dbosRuntime, err = dbosruntime.NewRuntime(ctx, dbosruntime.FromConfig(cfg, "framecompare-worker"))
		fatalOnErr(err, "init DBOS")
	} else {
		log.Warn("DBOS_SYSTEM_DATABASE_URL not set, runs execute synchronously")
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)
	components.Register(workflowRunner, log, app.Progress{})

	// Launch DBOS (must be done after workflow registration)
	if dbosRuntime != nil {
		fatalOnErr(dbosRuntime.Launch(), "launch DBOS")
		defer dbosRuntime.Shutdown(10 * time.Second)
		log.Info("DBOS runtime launched",
			zap.String("queue", dbosRuntime.QueueName()),
			zap.Int("concurrency", dbosRuntime.Concurrency()))
	}

	var lister handlers.CollectionLister
	if components.Ledger != nil {
		lister = components.Ledger
	}

	mux := http.NewServeMux()
	handlers.NewCompareHandler(workflowRunner, lister, log).Routes(mux)
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Info("worker listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	metricsSrv := metrics.StartServer(cfg.MetricsAddr, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
