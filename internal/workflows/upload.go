package workflows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/screenshots"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/pkg/compare"
)

// UploadWorkflow publishes stills already on disk, one folder per track
type UploadWorkflow struct {
	log       *zap.Logger
	publisher Publisher
	recorder  Recorder
	outputDir string
}

// NewUploadWorkflow creates an upload-only workflow
func NewUploadWorkflow(log *zap.Logger, publisher Publisher, recorder Recorder, outputDir string) *UploadWorkflow {
	return &UploadWorkflow{
		log:       log,
		publisher: publisher,
		recorder:  recorder,
		outputDir: outputDir,
	}
}

// Name returns the workflow name
func (w *UploadWorkflow) Name() string {
	return "UploadWorkflow"
}

// Execute scans the output folder and publishes what it finds
func (w *UploadWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log := w.log.With(zap.String("run_id", wctx.RunID))
	ctx, span := begin(wctx, string(compare.JobUpload))

	sum := &Summary{RunID: wctx.RunID, Job: compare.JobUpload}
	err := w.run(ctx, log, wctx, sum)
	return finish(log, span, sum, err)
}

func (w *UploadWorkflow) run(ctx context.Context, log *zap.Logger, wctx *WorkflowContext, sum *Summary) error {
	req := wctx.Request
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	sum.OutputDir = outputDir(req.OutputDir, w.outputDir)

	layout := screenshots.Layout{Root: sum.OutputDir}
	inv, err := layout.Scan()
	if err != nil {
		return err
	}
	if len(inv.Tracks) == 0 || len(inv.Frames) == 0 {
		return fmt.Errorf("%w in %s", ErrNothingToUpload, sum.OutputDir)
	}

	sum.Tracks = inv.Tracks
	sum.Frames = inv.Frames
	if inv.Files != len(inv.Tracks)*len(inv.Frames) {
		msg := fmt.Sprintf("found %d stills for %d tracks and %d frames; missing stills fall back to a prefix match", inv.Files, len(inv.Tracks), len(inv.Frames))
		sum.Warnings = append(sum.Warnings, msg)
		log.Warn(msg)
	}
	log.Info("uploading existing screenshots",
		zap.Strings("tracks", inv.Tracks),
		zap.Int("frames", len(inv.Frames)),
		zap.Int("files", inv.Files))

	batch := slowpics.Batch{
		Name:   compare.CollectionName(req.Upload.ShowName, req.Upload.Season, inv.Tracks),
		Tracks: inv.Tracks,
		Frames: inv.Frames,
		Public: req.Upload.Public,
		Images: layout,
	}
	return publish(ctx, log, w.publisher, w.recorder, wctx.RunID, batch, sum)
}
