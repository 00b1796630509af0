package screenshots

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidName is returned for track names that do not name a single folder under the root
var ErrInvalidName = errors.New("invalid track name")

// FileName is "<name>_<NNNNNN>.png"
func FileName(name string, frame int) string {
	return fmt.Sprintf("%s_%06d.png", name, frame)
}

// Layout locates stills under an output root as <root>/<name>/<name>_<NNNNNN>.png
type Layout struct {
	Root string
}

// Dir is the folder holding one track's stills
func (l Layout) Dir(name string) string {
	return filepath.Join(l.Root, name)
}

// trackDir is Dir for names that stay one level below Root
func (l Layout) trackDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := l.Dir(name)
	rel, err := filepath.Rel(l.Root, dir)
	if err != nil || rel != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return dir, nil
}

// Path is where the still for (name, frame) is written
func (l Layout) Path(name string, frame int) string {
	return filepath.Join(l.Dir(name), FileName(name, frame))
}

// Resolve finds the still for (name, frame). When the exact file is missing
// the first file in the folder sharing its "<name>_<NNNNNN>" prefix is used.
func (l Layout) Resolve(name string, frame int) (string, error) {
	dir, err := l.trackDir(name)
	if err != nil {
		return "", err
	}

	exact := filepath.Join(dir, FileName(name, frame))
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	prefix := strings.TrimSuffix(FileName(name, frame), ".png")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("screenshot %s not found: %w", exact, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("screenshot %s not found", exact)
}

// Clear removes existing stills from a track folder, creating the folder if needed
func (l Layout) Clear(name string) (int, error) {
	dir, err := l.trackDir(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	old, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return 0, err
	}
	for _, f := range old {
		if err := os.Remove(f); err != nil {
			return 0, fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return len(old), nil
}

// Inventory is what Scan found under an output root
type Inventory struct {
	Tracks []string
	Frames []int
	Files  int
}

// Scan lists track folders that hold stills and the union of their frame numbers,
// read from the trailing _NNNNNN of each file name.
func (l Layout) Scan() (*Inventory, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l.Root, err)
	}

	inv := &Inventory{}
	frames := make(map[int]struct{})

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(l.Root, e.Name(), "*.png"))
		if err != nil || len(files) == 0 {
			continue
		}
		inv.Tracks = append(inv.Tracks, e.Name())
		inv.Files += len(files)

		for _, f := range files {
			if n, ok := frameNumber(filepath.Base(f)); ok {
				frames[n] = struct{}{}
			}
		}
	}

	for f := range frames {
		inv.Frames = append(inv.Frames, f)
	}
	sort.Ints(inv.Frames)
	sort.Strings(inv.Tracks)
	return inv, nil
}

func frameNumber(file string) (int, bool) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
