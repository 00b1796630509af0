// Package imageseq treats still images and directories of extracted frames as
// clips. It needs no external tools, so it is always available.
package imageseq

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/raster"
	"github.com/tendant/framecompare/pkg/compare"
)

const Name = "imageseq"

var extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".gif":  true,
}

// IsImage reports whether path has a decodable still image extension
func IsImage(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Provider implements provider.Provider for image files
type Provider struct {
	log *zap.Logger
}

// New creates an image sequence provider
func New(log *zap.Logger) *Provider {
	return &Provider{log: log.Named("imageseq")}
}

// Candidate returns the selector entry for image sequences
func Candidate(log *zap.Logger) provider.Candidate {
	return provider.Candidate{
		Name:  Name,
		Probe: func(context.Context) error { return nil },
		New:   func() (provider.Provider, error) { return New(log), nil },
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapDecode,
		provider.CapResize,
		provider.CapCrop,
		provider.CapOverlay,
		provider.CapPNG,
	}
}

// Load accepts a single image or a directory whose images, in name order, are the frames
func (p *Provider) Load(ctx context.Context, path string) (provider.Clip, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}

	var files []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read frame directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && IsImage(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	} else if IsImage(path) {
		files = []string{path}
	} else {
		return nil, fmt.Errorf("%s is not an image or frame directory", path)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", path)
	}

	w, h, err := dimensions(files[0])
	if err != nil {
		return nil, err
	}

	p.log.Debug("image sequence loaded",
		zap.String("path", path),
		zap.Int("frames", len(files)),
		zap.Int("width", w),
		zap.Int("height", h))

	return &clip{path: path, files: files, width: w, height: h}, nil
}

func (p *Provider) GetFrame(ctx context.Context, c provider.Clip, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cl, ok := c.(*clip)
	if !ok {
		return nil, fmt.Errorf("clip was not loaded by imageseq")
	}
	if index < 0 || index >= len(cl.files) {
		return nil, provider.ErrFrameOutOfRange
	}

	img, err := imaging.Open(cl.files[index])
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cl.files[index], err)
	}

	// frames of differing size are brought to the clip geometry
	if b := img.Bounds(); b.Dx() != cl.width || b.Dy() != cl.height {
		return raster.Resize(img, cl.width, cl.height, imaging.CatmullRom), nil
	}
	return img, nil
}

func (p *Provider) Resize(frame image.Image, width, height int) image.Image {
	return raster.Resize(frame, width, height, imaging.CatmullRom)
}

func (p *Provider) Crop(frame image.Image, left, top, right, bottom int) (image.Image, error) {
	return raster.Crop(frame, left, top, right, bottom)
}

func (p *Provider) Blank(width, height int) image.Image {
	return raster.Blank(width, height)
}

func (p *Provider) OverlayText(frame image.Image, text string, pos image.Point) image.Image {
	return raster.Overlay(frame, text, pos)
}

func (p *Provider) EncodePNG(frame image.Image, path string) error {
	return raster.SavePNG(frame, path)
}

func (p *Provider) DetectCrop(ctx context.Context, c provider.Clip) (compare.Crop, error) {
	return compare.Crop{}, provider.ErrUnsupported
}

func dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header of %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

type clip struct {
	path   string
	files  []string
	width  int
	height int
}

func (c *clip) Path() string    { return c.path }
func (c *clip) FrameCount() int { return len(c.files) }
func (c *clip) Width() int      { return c.width }
func (c *clip) Height() int     { return c.height }
func (c *clip) Close() error    { return nil }
