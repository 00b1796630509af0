package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/ledger"
	"github.com/tendant/framecompare/internal/metrics"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/internal/tracing"
)

// stage runs fn inside a span and records its duration
func stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "framecompare."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// begin opens the run span and counts the run as active
func begin(wctx *WorkflowContext, job string) (context.Context, trace.Span) {
	metrics.ActiveRuns.Inc()
	return tracing.Tracer().Start(wctx.Ctx, "framecompare.run",
		trace.WithAttributes(
			attribute.String("run_id", wctx.RunID),
			attribute.String("job", job),
		))
}

// finish settles the run status and builds the workflow result.
// Cancellation is a stopped run, not a failure.
func finish(log *zap.Logger, span trace.Span, sum *Summary, err error) (*WorkflowResult, error) {
	defer span.End()
	defer metrics.ActiveRuns.Dec()

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		sum.Status = StatusStopped
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("run stopped: %v", err))
		err = nil
	}

	switch {
	case err != nil:
		sum.Status = StatusFailed
		sum.Error = err.Error()
	case sum.Status == "":
		sum.Status = StatusSucceeded
	}

	metrics.RunsTotal.WithLabelValues(string(sum.Status)).Inc()
	span.SetAttributes(attribute.String("status", string(sum.Status)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("run failed", zap.Error(err), zap.Strings("published", sum.URLs()))
		return &WorkflowResult{Success: false, Error: err.Error(), Summary: sum}, err
	}

	log.Info("run finished",
		zap.String("status", string(sum.Status)),
		zap.Strings("urls", sum.URLs()))
	return &WorkflowResult{Success: sum.Status == StatusSucceeded, Summary: sum}, nil
}

// publish uploads the batch and records every collection that made it,
// including the chunks published before a chunk failure
func publish(ctx context.Context, log *zap.Logger, pub Publisher, rec Recorder, runID string, b slowpics.Batch, sum *Summary) error {
	if pub == nil {
		return ErrNoPublisher
	}

	return stage(ctx, "publish", func(ctx context.Context) error {
		res, err := pub.Publish(ctx, b)
		if err != nil && ctx.Err() == nil {
			sum.Warnings = append(sum.Warnings, manualUploadHint(sum.OutputDir))
		}

		var ce *slowpics.ChunkError
		if errors.As(err, &ce) {
			sum.Collections = ce.Published
			sum.Chunked = true
			record(ctx, log, rec, runID, ce.Published, ce.Parts)
			return err
		}
		if err != nil {
			return err
		}

		sum.Collections = res.Collections
		sum.Chunked = res.Chunked
		parts := 0
		if res.Chunked {
			parts = len(res.Collections)
		}
		record(ctx, log, rec, runID, res.Collections, parts)

		log.Info("comparison published", zap.Strings("urls", res.URLs()), zap.Bool("chunked", res.Chunked))
		return nil
	})
}

func manualUploadHint(dir string) string {
	return fmt.Sprintf("upload failed; the stills remain in %s and can be uploaded manually", dir)
}

// record writes collections to the ledger. parts is 0 for an unchunked upload.
func record(ctx context.Context, log *zap.Logger, rec Recorder, runID string, cols []slowpics.Collection, parts int) {
	if rec == nil {
		return
	}
	for i, c := range cols {
		e := ledger.Entry{RunID: runID, Parts: parts, Name: c.Name, Key: c.Key, URL: c.URL}
		if parts > 0 {
			e.Part = i + 1
		}
		// the upload already happened; a ledger failure must not fail the run
		if err := rec.Record(context.WithoutCancel(ctx), e); err != nil {
			log.Warn("failed to record collection", zap.String("url", c.URL), zap.Error(err))
		}
	}
}
