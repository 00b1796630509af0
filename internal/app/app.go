// Package app builds the run collaborators from configuration. The CLI, the
// worker and the embeddable runner all wire workflows through it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-content/pkg/simplecontent/presets"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/config"
	"github.com/tendant/framecompare/internal/ledger"
	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/engines"
	"github.com/tendant/framecompare/internal/provider/ffmpeg"
	"github.com/tendant/framecompare/internal/screenshots"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/internal/storage"
	"github.com/tendant/framecompare/internal/workflows"
	"github.com/tendant/framecompare/pkg/compare"
)

// Progress hooks for interactive use
type Progress struct {
	Screenshots screenshots.ProgressFunc
	Uploads     slowpics.ProgressFunc
}

// Components are the long lived collaborators of a process
type Components struct {
	Candidates []provider.Candidate
	Publisher  *slowpics.Client
	Resolver   *storage.Resolver
	Archivers  []storage.Archiver
	Ledger     *ledger.Ledger
	OutputDir  string

	closers []func() error
}

// FFmpegConfig maps the environment to the ffmpeg provider settings
func FFmpegConfig(cfg *config.Config) ffmpeg.Config {
	return ffmpeg.Config{
		FFmpegPath:   cfg.FFmpegPath,
		ProbeTimeout: config.Seconds(cfg.FFprobeTimeoutS),
		CropSamples:  cfg.CropDetectSamples,
	}
}

// SlowpicsConfig maps the environment to the publishing client settings
func SlowpicsConfig(cfg *config.Config) slowpics.Config {
	sp := slowpics.DefaultConfig()
	sp.BaseURL = cfg.SlowpicsBaseURL
	sp.HTTPTimeout = config.Seconds(cfg.SlowpicsTimeoutS)
	sp.MaxAttempts = cfg.SlowpicsMaxAttempts
	sp.RetryBaseDelay = config.Millis(cfg.SlowpicsRetryBaseDelayMs)
	sp.UploadDelay = config.Millis(cfg.SlowpicsUploadDelayMs)
	sp.ChunkTarget = cfg.SlowpicsChunkTarget
	return sp
}

// Build creates every configured component. Optional backends (content
// store, bucket, ledger) are only created when their settings are present.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, progress Progress) (*Components, error) {
	c := &Components{
		Candidates: engines.Default(FFmpegConfig(cfg), log),
		Publisher:  slowpics.New(SlowpicsConfig(cfg), log, slowpics.WithProgress(progress.Uploads)),
		OutputDir:  cfg.OutputDir,
	}

	var media *storage.FilesystemStorage
	if cfg.MediaRoot != "" {
		fs, err := storage.NewFilesystemStorage(cfg.MediaRoot)
		if err != nil {
			return nil, err
		}
		media = fs
	}
	c.Resolver = storage.NewResolver(log, media).WithHTTP(storage.NewHTTPReader(nil))

	if cfg.ContentStorageDir != "" {
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.ContentStorageDir))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize simple-content service: %w", err)
		}
		c.closers = append(c.closers, func() error { cleanup(); return nil })

		store := storage.NewContentStore(svc)
		c.Archivers = append(c.Archivers, store)
		c.Resolver.WithContent(store)
		log.Info("archiving stills to simple-content", zap.String("dir", cfg.ContentStorageDir))
	}

	if cfg.MinIOEndpoint != "" {
		bucket, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
			Prefix:    cfg.MinIOPrefix,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			c.Close()
			return nil, err
		}
		c.Archivers = append(c.Archivers, bucket)
		c.Resolver.WithS3(bucket)
		log.Info("archiving stills to bucket", zap.String("endpoint", cfg.MinIOEndpoint), zap.String("bucket", cfg.MinIOBucket))
	}

	if cfg.LedgerURL != "" {
		l, err := ledger.Open(ctx, cfg.LedgerURL, log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Ledger = l
		c.closers = append(c.closers, l.Close)
	}

	return c, nil
}

// Recorder returns the ledger as a workflow recorder, or nil without one
func (c *Components) Recorder() workflows.Recorder {
	if c.Ledger == nil {
		return nil
	}
	return c.Ledger
}

// Register adds the compare and upload workflows to the runner
func (c *Components) Register(runner *workflows.WorkflowRunner, log *zap.Logger, progress Progress) {
	runner.Register(compare.JobCompare, workflows.NewCompareWorkflow(log, workflows.Options{
		Candidates: c.Candidates,
		Resolver:   c.Resolver,
		Publisher:  c.Publisher,
		Archivers:  c.Archivers,
		Recorder:   c.Recorder(),
		OutputDir:  c.OutputDir,
		Progress:   progress.Screenshots,
	}))
	runner.Register(compare.JobUpload, workflows.NewUploadWorkflow(log, c.Publisher, c.Recorder(), c.OutputDir))
}

// Close releases everything Build opened, in reverse order
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
