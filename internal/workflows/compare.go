package workflows

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/frames"
	"github.com/tendant/framecompare/internal/metrics"
	"github.com/tendant/framecompare/internal/processing"
	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/screenshots"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/internal/storage"
	"github.com/tendant/framecompare/pkg/compare"
)

// DefaultOutputDir is used when neither the request nor the workflow names one
const DefaultOutputDir = "Screenshots"

// Options are the collaborators of a comparison run. Only Candidates is required.
type Options struct {
	Candidates []provider.Candidate
	Resolver   SourceResolver
	Publisher  Publisher
	Archivers  []storage.Archiver
	Recorder   Recorder
	OutputDir  string

	// Progress is called after every screenshot
	Progress screenshots.ProgressFunc
}

// CompareWorkflow extracts aligned stills from every track and optionally publishes them
type CompareWorkflow struct {
	log  *zap.Logger
	opts Options
}

// NewCompareWorkflow creates a new comparison workflow
func NewCompareWorkflow(log *zap.Logger, opts Options) *CompareWorkflow {
	return &CompareWorkflow{
		log:  log,
		opts: opts,
	}
}

// Name returns the workflow name
func (w *CompareWorkflow) Name() string {
	return "CompareWorkflow"
}

// Execute runs select, process, frame selection, screenshots, archive and publish
func (w *CompareWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log := w.log.With(zap.String("run_id", wctx.RunID))
	ctx, span := begin(wctx, string(compare.JobCompare))

	sum := &Summary{RunID: wctx.RunID, Job: compare.JobCompare}
	err := w.run(ctx, log, wctx, sum)
	return finish(log, span, sum, err)
}

func (w *CompareWorkflow) run(ctx context.Context, log *zap.Logger, wctx *WorkflowContext, sum *Summary) error {
	req := wctx.Request

	// Step 1: validate request
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	sum.OutputDir = outputDir(req.OutputDir, w.opts.OutputDir)
	log.Info("starting comparison", zap.Int("tracks", len(req.Tracks)), zap.String("output", sum.OutputDir))

	// Step 2: choose the provider for the whole run
	var session *provider.Session
	err := stage(ctx, "select", func(ctx context.Context) error {
		var err error
		session, err = provider.Open(ctx, log, w.opts.Candidates...)
		sum.Provider = session.Report.Active
		return err
	})
	if err != nil {
		return err
	}

	// Step 3: process tracks; downloaded sources live in a directory owned by this run
	loader := &resolvingLoader{resolver: w.opts.Resolver, session: session}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to release clips", zap.Error(err))
		}
		if err := loader.cleanup(); err != nil {
			log.Warn("failed to remove downloaded sources", zap.String("dir", loader.dir), zap.Error(err))
		}
	}()

	var processed *processing.Result
	err = stage(ctx, "process", func(ctx context.Context) error {
		var err error
		processed, err = processing.ApplyAll(ctx, log, session.Provider, loader, req.Tracks)
		return err
	})
	if processed != nil {
		sum.addProcessing(processed)
		metrics.TracksDroppedTotal.Add(float64(len(processed.Failed)))
	}
	if err != nil {
		return err
	}
	clips := processed.Clips

	// Step 4: select frames
	tracks := make([]frames.Track, len(clips))
	for i, c := range clips {
		tracks[i] = c
	}
	sel, err := frames.Select(log, req.Frames, tracks)
	if err != nil {
		return err
	}
	sum.Frames = sel.Frames
	sum.Excluded = sel.Excluded
	sum.Warnings = append(sum.Warnings, sel.Warnings...)

	// Step 5: write screenshots
	layout := screenshots.Layout{Root: sum.OutputDir}
	sources := make([]screenshots.Source, len(clips))
	for i, c := range clips {
		sources[i] = c
	}
	err = stage(ctx, "screenshots", func(ctx context.Context) error {
		m := screenshots.New(session.Provider, log, screenshots.WithProgress(w.opts.Progress))
		shots, err := m.Run(ctx, layout, sources, sel.Frames)
		sum.Screenshots = shots
		return err
	})
	if sum.Screenshots != nil {
		metrics.ScreenshotsTotal.WithLabelValues("success").Add(float64(sum.Screenshots.Success))
		metrics.ScreenshotsTotal.WithLabelValues("error").Add(float64(sum.Screenshots.Errors))
	}
	if err != nil {
		return err
	}
	shots := sum.Screenshots
	if shots.Stopped {
		sum.Status = StatusStopped
		return nil
	}
	if !shots.Succeeded() {
		return fmt.Errorf("%w: %d failed", ErrNoScreenshots, shots.Errors)
	}

	// Step 6: archive stills
	w.archive(ctx, log, wctx.RunID, shots.Files, sum)

	// Step 7: publish
	if req.Upload == nil {
		return nil
	}
	names := make([]string, len(clips))
	for i, c := range clips {
		names[i] = c.Name()
	}
	complete := completeFrames(shots.Files, names, sel.Frames)
	if skipped := len(sel.Frames) - len(complete); skipped > 0 {
		msg := fmt.Sprintf("%d frames left out of the upload because a screenshot failed", skipped)
		sum.Warnings = append(sum.Warnings, msg)
		log.Warn(msg)
	}

	batch := slowpics.Batch{
		Name:   compare.CollectionName(req.Upload.ShowName, req.Upload.Season, names),
		Tracks: names,
		Frames: complete,
		Public: req.Upload.Public,
		Images: layout,
	}
	return publish(ctx, log, w.opts.Publisher, w.opts.Recorder, wctx.RunID, batch, sum)
}

// archive mirrors every still to each archiver; failures are reported, not fatal
func (w *CompareWorkflow) archive(ctx context.Context, log *zap.Logger, runID string, files []screenshots.File, sum *Summary) {
	if len(w.opts.Archivers) == 0 {
		return
	}
	_ = stage(ctx, "archive", func(ctx context.Context) error {
		failed := 0
		for _, f := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			still := storage.Still{RunID: runID, Track: f.Track, Frame: f.Frame, Path: f.Path}
			for _, a := range w.opts.Archivers {
				if _, err := a.Archive(ctx, still); err != nil {
					failed++
					log.Warn("failed to archive still", zap.String("path", f.Path), zap.Error(err))
					continue
				}
				sum.Archived++
			}
		}
		if failed > 0 {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%d stills could not be archived", failed))
		}
		return nil
	})
}

// completeFrames keeps the frames for which every track has a still
func completeFrames(files []screenshots.File, tracks []string, selected []int) []int {
	have := make(map[int]int, len(selected))
	for _, f := range files {
		have[f.Frame]++
	}
	var out []int
	for _, f := range selected {
		if have[f] == len(tracks) {
			out = append(out, f)
		}
	}
	return out
}

func outputDir(requested, configured string) string {
	switch {
	case requested != "":
		return requested
	case configured != "":
		return configured
	}
	return DefaultOutputDir
}

// resolvingLoader localizes a track reference before loading it in the session
type resolvingLoader struct {
	resolver SourceResolver
	session  *provider.Session
	dir      string
}

func (l *resolvingLoader) Load(ctx context.Context, ref string) (provider.Clip, error) {
	path := ref
	if l.resolver != nil {
		if l.dir == "" {
			dir, err := os.MkdirTemp("", "framecompare-src-")
			if err != nil {
				return nil, fmt.Errorf("failed to create temp dir: %w", err)
			}
			l.dir = dir
		}
		p, err := l.resolver.Localize(ctx, l.dir, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve source: %w", err)
		}
		path = p
	}
	return l.session.Load(ctx, path)
}

// cleanup removes the run's download directory
func (l *resolvingLoader) cleanup() error {
	if l.dir == "" {
		return nil
	}
	return os.RemoveAll(l.dir)
}
