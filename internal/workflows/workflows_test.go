package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/ledger"
	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/providertest"
	"github.com/tendant/framecompare/internal/screenshots"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/internal/storage"
	"github.com/tendant/framecompare/pkg/compare"
)

type fakePublisher struct {
	batches []slowpics.Batch
	result  *slowpics.Result
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, b slowpics.Batch) (*slowpics.Result, error) {
	f.batches = append(f.batches, b)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	// every image must be resolvable, as the real client would require
	for _, frame := range b.Frames {
		for _, track := range b.Tracks {
			if _, err := b.Images.Resolve(track, frame); err != nil {
				return nil, &slowpics.UploadError{Track: track, Frame: frame, Err: err}
			}
		}
	}
	return &slowpics.Result{Collections: []slowpics.Collection{{Name: b.Name, Key: "k1", URL: "https://slow.pics/c/k1", Frames: b.Frames}}}, nil
}

// fakeResolver "downloads" each reference into the run directory and hands
// back the original name so the fake provider can still open it
type fakeResolver struct {
	mu   sync.Mutex
	dirs []string
}

func (f *fakeResolver) Localize(ctx context.Context, dir, ref string) (string, error) {
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	if err := os.WriteFile(filepath.Join(dir, filepath.Base(ref)), []byte("media"), 0644); err != nil {
		return "", err
	}
	return ref, nil
}

type fakeRecorder struct {
	entries []ledger.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, e ledger.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fakeArchiver struct {
	mu    sync.Mutex
	keys  []string
	failN int
}

func (f *fakeArchiver) Archive(ctx context.Context, s storage.Still) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return "", errors.New("bucket unavailable")
	}
	f.keys = append(f.keys, s.Key())
	return "mem://" + s.Key(), nil
}

func twoSources() *providertest.Provider {
	return providertest.New(map[string]providertest.Source{
		"bd.mkv":  {Frames: 100, Width: 64, Height: 36},
		"web.mkv": {Frames: 100, Width: 64, Height: 36},
	})
}

func compareRequest(dir string) compare.Request {
	return compare.Request{
		Tracks: []compare.Track{
			{Path: "bd.mkv", Name: "BD", Role: compare.RoleReference},
			{Path: "web.mkv", Name: "WEB", Role: compare.RoleCandidate},
		},
		Frames:    compare.FrameSpec{Mode: compare.FramesInterval, Interval: 10},
		OutputDir: dir,
	}
}

func execute(t *testing.T, wf Workflow, ctx context.Context, req compare.Request) (*WorkflowResult, error) {
	t.Helper()
	return wf.Execute(&WorkflowContext{Ctx: ctx, Request: req, RunID: "run-1"})
}

func TestCompareWritesScreenshots(t *testing.T) {
	p := twoSources()
	dir := t.TempDir()
	archiver := &fakeArchiver{}

	var progress int
	wf := NewCompareWorkflow(zap.NewNop(), Options{
		Candidates: []provider.Candidate{p.Candidate()},
		Archivers:  []storage.Archiver{archiver},
		Progress:   func(done, total int) { progress = done },
	})

	res, err := execute(t, wf, context.Background(), compareRequest(dir))
	require.NoError(t, err)
	require.True(t, res.Success)

	sum := res.Summary
	assert.Equal(t, StatusSucceeded, sum.Status)
	assert.Equal(t, "fake", sum.Provider)
	assert.Equal(t, []string{"BD", "WEB"}, sum.Tracks)
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, sum.Frames)
	assert.Equal(t, 20, sum.Screenshots.Success)
	assert.Equal(t, 20, progress)
	assert.Equal(t, 20, sum.Archived)
	assert.Contains(t, archiver.keys, "run-1/WEB/WEB_000090.png")
	assert.FileExists(t, filepath.Join(dir, "BD", "BD_000000.png"))

	resp := sum.Response()
	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, 20, resp.Screenshots)
	assert.Empty(t, resp.URLs)
}

func TestDownloadedSourcesAreRemovedAfterRun(t *testing.T) {
	resolver := &fakeResolver{}
	wf := NewCompareWorkflow(zap.NewNop(), Options{
		Candidates: []provider.Candidate{twoSources().Candidate()},
		Resolver:   resolver,
	})

	_, err := execute(t, wf, context.Background(), compareRequest(t.TempDir()))
	require.NoError(t, err)

	_, err = execute(t, wf, context.Background(), compareRequest(t.TempDir()))
	require.NoError(t, err)

	require.Len(t, resolver.dirs, 4)
	assert.Equal(t, resolver.dirs[0], resolver.dirs[1])
	assert.NotEqual(t, resolver.dirs[0], resolver.dirs[2])
	for _, dir := range resolver.dirs {
		assert.NoDirExists(t, dir)
	}
}

func TestComparePublishesAndRecords(t *testing.T) {
	p := twoSources()
	pub := &fakePublisher{}
	rec := &fakeRecorder{}

	wf := NewCompareWorkflow(zap.NewNop(), Options{
		Candidates: []provider.Candidate{p.Candidate()},
		Publisher:  pub,
		Recorder:   rec,
	})

	req := compareRequest(t.TempDir())
	req.Upload = &compare.UploadOptions{ShowName: "Show", Season: 1, Public: true}

	res, err := execute(t, wf, context.Background(), req)
	require.NoError(t, err)

	require.Len(t, pub.batches, 1)
	b := pub.batches[0]
	assert.Equal(t, "Show S01 BD vs WEB", b.Name)
	assert.Equal(t, []string{"BD", "WEB"}, b.Tracks)
	assert.Len(t, b.Frames, 10)
	assert.True(t, b.Public)

	assert.Equal(t, []string{"https://slow.pics/c/k1"}, res.Summary.URLs())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, ledger.Entry{RunID: "run-1", Name: "Show S01 BD vs WEB", Key: "k1", URL: "https://slow.pics/c/k1"}, rec.entries[0])
}

func TestFailedFramesAreLeftOutOfTheUpload(t *testing.T) {
	p := twoSources()
	p.FailFrames = map[int]bool{30: true}
	pub := &fakePublisher{}

	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}, Publisher: pub})
	req := compareRequest(t.TempDir())
	req.Upload = &compare.UploadOptions{ShowName: "Show"}

	res, err := execute(t, wf, context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.Screenshots.Errors)
	require.Len(t, pub.batches, 1)
	assert.NotContains(t, pub.batches[0].Frames, 30)
	assert.Len(t, pub.batches[0].Frames, 9)
	assert.NotEmpty(t, res.Summary.Warnings)
}

func TestChunkFailureKeepsPublishedParts(t *testing.T) {
	p := twoSources()
	published := []slowpics.Collection{{Name: "Show BD vs WEB (Part 1/3)", Key: "k1", URL: "https://slow.pics/c/k1"}}
	pub := &fakePublisher{err: &slowpics.ChunkError{Part: 2, Parts: 3, Published: published, Err: errors.New("502")}}
	rec := &fakeRecorder{}

	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}, Publisher: pub, Recorder: rec})
	req := compareRequest(t.TempDir())
	req.Upload = &compare.UploadOptions{ShowName: "Show"}

	res, err := execute(t, wf, context.Background(), req)
	var ce *slowpics.ChunkError
	require.ErrorAs(t, err, &ce)

	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Summary.Status)
	assert.True(t, res.Summary.Chunked)
	assert.Equal(t, []string{"https://slow.pics/c/k1"}, res.Summary.URLs())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, 1, rec.entries[0].Part)
	assert.Equal(t, 3, rec.entries[0].Parts)
	assert.Contains(t, res.Summary.Warnings, manualUploadHint(req.OutputDir))
}

func TestUploadFailureSuggestsManualUpload(t *testing.T) {
	p := twoSources()
	pub := &fakePublisher{err: &slowpics.UploadError{Track: "WEB", Frame: 40, Err: errors.New("413")}}

	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}, Publisher: pub})
	req := compareRequest(t.TempDir())
	req.Upload = &compare.UploadOptions{ShowName: "Show"}

	res, err := execute(t, wf, context.Background(), req)
	var ue *slowpics.UploadError
	require.ErrorAs(t, err, &ue)

	assert.Equal(t, StatusFailed, res.Summary.Status)
	assert.Empty(t, res.Summary.URLs())
	assert.Contains(t, res.Summary.Warnings, manualUploadHint(req.OutputDir))
	assert.Contains(t, res.Summary.Response().Messages, manualUploadHint(req.OutputDir))
	assert.FileExists(t, filepath.Join(req.OutputDir, "WEB", "WEB_000040.png"))
}

func TestDroppedTrackIsReported(t *testing.T) {
	p := twoSources()
	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}})

	req := compareRequest(t.TempDir())
	req.Tracks = append(req.Tracks, compare.Track{Path: "missing.mkv", Name: "DVD", Role: compare.RoleCandidate})

	res, err := execute(t, wf, context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"DVD"}, res.Summary.Dropped)
	assert.Equal(t, 20, res.Summary.Screenshots.Success)
}

func TestNoProviderIsFatal(t *testing.T) {
	unavailable := provider.Candidate{
		Name:  "ffmpeg",
		Probe: func(context.Context) error { return errors.New("not installed") },
	}
	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{unavailable}})

	res, err := execute(t, wf, context.Background(), compareRequest(t.TempDir()))
	assert.ErrorIs(t, err, provider.ErrNoProvider)
	assert.Equal(t, StatusFailed, res.Summary.Status)
	assert.Nil(t, res.Summary.Screenshots)
}

func TestInvalidRequest(t *testing.T) {
	wf := NewCompareWorkflow(zap.NewNop(), Options{})
	_, err := execute(t, wf, context.Background(), compare.Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUploadWithoutPublisher(t *testing.T) {
	p := twoSources()
	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}})
	req := compareRequest(t.TempDir())
	req.Upload = &compare.UploadOptions{ShowName: "Show"}

	_, err := execute(t, wf, context.Background(), req)
	assert.ErrorIs(t, err, ErrNoPublisher)
}

func TestCancelledRunIsStopped(t *testing.T) {
	p := twoSources()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decodes := 0
	p.OnGetFrame = func(string, int) {
		decodes++
		if decodes == 3 {
			cancel()
		}
	}

	dir := t.TempDir()
	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}})
	res, err := execute(t, wf, ctx, compareRequest(dir))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, StatusStopped, res.Summary.Status)
	assert.True(t, res.Summary.Screenshots.Stopped)
	assert.Equal(t, 3, res.Summary.Screenshots.Success)
	assert.FileExists(t, filepath.Join(dir, "BD", "BD_000010.png"))
}

func TestArchiveFailuresAreWarnings(t *testing.T) {
	p := twoSources()
	archiver := &fakeArchiver{failN: 2}
	wf := NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}, Archivers: []storage.Archiver{archiver}})

	res, err := execute(t, wf, context.Background(), compareRequest(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 18, res.Summary.Archived)
	assert.Contains(t, res.Summary.Warnings, "2 stills could not be archived")
}

func writeStills(t *testing.T, dir string, tracks []string, frames []int) {
	t.Helper()
	layout := screenshots.Layout{Root: dir}
	for _, tr := range tracks {
		require.NoError(t, os.MkdirAll(layout.Dir(tr), 0755))
		for _, f := range frames {
			require.NoError(t, os.WriteFile(layout.Path(tr, f), []byte("png"), 0644))
		}
	}
}

func TestUploadWorkflowScansOutput(t *testing.T) {
	dir := t.TempDir()
	writeStills(t, dir, []string{"BD", "WEB"}, []int{5, 15, 25})
	pub := &fakePublisher{}
	rec := &fakeRecorder{}

	wf := NewUploadWorkflow(zap.NewNop(), pub, rec, dir)
	res, err := execute(t, wf, context.Background(), compare.Request{
		Job:    compare.JobUpload,
		Upload: &compare.UploadOptions{ShowName: "Movie"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "Movie BD vs WEB", pub.batches[0].Name)
	assert.Equal(t, []int{5, 15, 25}, pub.batches[0].Frames)
	assert.Equal(t, compare.JobUpload, res.Summary.Job)
	assert.Len(t, rec.entries, 1)
}

func TestUploadWorkflowNothingToUpload(t *testing.T) {
	wf := NewUploadWorkflow(zap.NewNop(), &fakePublisher{}, nil, t.TempDir())
	_, err := execute(t, wf, context.Background(), compare.Request{
		Job:    compare.JobUpload,
		Upload: &compare.UploadOptions{ShowName: "Movie"},
	})
	assert.ErrorIs(t, err, ErrNothingToUpload)
}

func TestCompleteFrames(t *testing.T) {
	files := []screenshots.File{
		{Track: "A", Frame: 0}, {Track: "B", Frame: 0},
		{Track: "A", Frame: 10},
		{Track: "A", Frame: 20}, {Track: "B", Frame: 20},
	}
	assert.Equal(t, []int{0, 20}, completeFrames(files, []string{"A", "B"}, []int{0, 10, 20}))
}

func TestRunnerDispatchesByJob(t *testing.T) {
	r := NewWorkflowRunner(nil)
	assert.False(t, r.Async())

	_, err := r.Run(&WorkflowContext{Ctx: context.Background(), Request: compare.Request{}})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	p := twoSources()
	r.Register(compare.JobCompare, NewCompareWorkflow(zap.NewNop(), Options{Candidates: []provider.Candidate{p.Candidate()}}))

	res, err := r.Run(&WorkflowContext{Ctx: context.Background(), Request: compareRequest(t.TempDir()), RunID: NewRunID(compare.JobCompare)})
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = r.RunAsync(context.Background(), compareRequest(t.TempDir()))
	assert.ErrorIs(t, err, ErrAsyncUnavailable)
	_, err = r.GetStatus(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAsyncUnavailable)
}

func TestState(t *testing.T) {
	tests := map[string]string{
		"ENQUEUED":                       "pending",
		"PENDING":                        "running",
		"SUCCESS":                        "succeeded",
		"ERROR":                          "failed",
		"MAX_RECOVERY_ATTEMPTS_EXCEEDED": "failed",
		"CANCELLED":                      "cancelled",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, State(in))
		})
	}
}

func TestWorkflowStatusRunStatus(t *testing.T) {
	pending := (&WorkflowStatus{RunID: "compare-1", State: "pending"}).RunStatus()
	assert.Equal(t, "pending", pending.State)
	assert.Zero(t, pending.Screenshots)
	assert.Empty(t, pending.Messages)

	failed := (&WorkflowStatus{
		RunID:  "compare-2",
		State:  "failed",
		Result: &WorkflowResult{Error: ErrNoScreenshots.Error()},
	}).RunStatus()
	assert.Equal(t, []string{ErrNoScreenshots.Error()}, failed.Messages)

	sum := &Summary{
		Status:      StatusFailed,
		OutputDir:   "Screenshots",
		Screenshots: &screenshots.Result{Success: 20},
		Warnings:    []string{manualUploadHint("Screenshots")},
	}
	done := (&WorkflowStatus{RunID: "compare-3", State: "failed", Result: &WorkflowResult{Summary: sum}}).RunStatus()
	assert.Equal(t, 20, done.Screenshots)
	assert.Contains(t, done.Messages, manualUploadHint("Screenshots"))
}
