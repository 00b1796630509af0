package screenshots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "BD_000120.png", FileName("BD", 120))
	assert.Equal(t, filepath.Join("out", "BD", "BD_000120.png"), Layout{Root: "out"}.Path("BD", 120))
}

func TestResolveFallsBackToPrefix(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	touch(t, filepath.Join(l.Dir("BD"), "BD_000010_000450.png"))

	path, err := l.Resolve("BD", 10)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Dir("BD"), "BD_000010_000450.png"), path)

	_, err = l.Resolve("BD", 11)
	assert.Error(t, err)

	touch(t, l.Path("BD", 11))
	path, err = l.Resolve("BD", 11)
	require.NoError(t, err)
	assert.Equal(t, l.Path("BD", 11), path)
}

func TestScan(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	touch(t, l.Path("Web_DL", 10))
	touch(t, l.Path("Web_DL", 20))
	touch(t, l.Path("BD", 10))
	touch(t, l.Path("BD", 30))
	touch(t, filepath.Join(l.Root, "empty", "readme.txt"))
	touch(t, filepath.Join(l.Root, "stray.png"))

	inv, err := l.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"BD", "Web_DL"}, inv.Tracks)
	assert.Equal(t, []int{10, 20, 30}, inv.Frames)
	assert.Equal(t, 4, inv.Files)
}

func TestClearRejectsNamesOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "out")
	keep := filepath.Join(parent, "keep.png")
	touch(t, keep)

	l := Layout{Root: root}
	for _, name := range []string{"..", ".", "", "a/b", "../out"} {
		_, err := l.Clear(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err := l.Resolve("..", 1)
	assert.ErrorIs(t, err, ErrInvalidName)

	assert.FileExists(t, keep)

	n, err := l.Clear("BD")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.DirExists(t, filepath.Join(root, "BD"))
}
