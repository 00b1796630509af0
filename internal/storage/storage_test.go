package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"
	"go.uber.org/zap"
)

func TestFilesystemStorageRejectsTraversal(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Path("../etc/passwd")
	assert.ErrorIs(t, err, ErrTraversal)

	_, err = fs.GetReader(context.Background(), "a/../../b")
	assert.ErrorIs(t, err, ErrTraversal)

	p, err := fs.Path("shows/ep1.mkv")
	require.NoError(t, err)
	assert.Equal(t, "ep1.mkv", filepath.Base(p))
}

func TestFilesystemStorageReadsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("data"), 0644))

	fs, err := NewFilesystemStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := fs.Exists(ctx, "a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.Exists(ctx, "b.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.GetReader(ctx, "b.png")
	assert.ErrorIs(t, err, ErrNotFound)

	meta, err := fs.GetMetadata(ctx, "a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.Size)
}

func TestResolverLocalPaths(t *testing.T) {
	ctx := context.Background()

	open := NewResolver(zap.NewNop(), nil)
	p, err := open.Localize(ctx, "", "/videos/a.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/videos/a.mkv", p)

	root := t.TempDir()
	fs, err := NewFilesystemStorage(root)
	require.NoError(t, err)
	confined := NewResolver(zap.NewNop(), fs)

	p, err = confined.Localize(ctx, "", "a.mkv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.mkv"), p)

	_, err = confined.Localize(ctx, "", "../a.mkv")
	assert.ErrorIs(t, err, ErrTraversal)

	_, err = confined.Localize(ctx, "", "s3:videos/a.mkv")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestResolverDownloadsHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/ep1.mkv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("video bytes"))
	}))
	defer srv.Close()

	r := NewResolver(zap.NewNop(), nil).WithHTTP(NewHTTPReader(srv.Client()))
	ctx := context.Background()
	dir := t.TempDir()

	p, err := r.Localize(ctx, dir, srv.URL+"/media/ep1.mkv")
	require.NoError(t, err)
	assert.Equal(t, ".mkv", filepath.Ext(p))
	assert.Equal(t, dir, filepath.Dir(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))

	_, err = r.Localize(ctx, dir, srv.URL+"/missing.mkv")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Localize(ctx, "", srv.URL+"/media/ep1.mkv")
	assert.Error(t, err)
}

func TestContentStoreRoundTrip(t *testing.T) {
	svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(t.TempDir()))
	require.NoError(t, err)
	defer cleanup()

	still := filepath.Join(t.TempDir(), "BD_000120.png")
	require.NoError(t, os.WriteFile(still, []byte("\x89PNG still"), 0644))

	cs := NewContentStore(svc)
	ctx := context.Background()

	id, err := cs.Archive(ctx, Still{RunID: "run-1", Track: "BD", Frame: 120, Path: still})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := cs.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	r := NewResolver(zap.NewNop(), nil).WithContent(cs)
	p, err := r.Localize(ctx, t.TempDir(), SchemeContent+id)
	require.NoError(t, err)

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG still", string(data))
}

func TestStillKey(t *testing.T) {
	s := Still{RunID: "r1", Track: "WEB", Frame: 5, Path: "/out/WEB/WEB_000005.png"}
	assert.Equal(t, "r1/WEB/WEB_000005.png", s.Key())
}
