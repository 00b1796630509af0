// Package providertest provides an in-memory provider for tests
package providertest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/raster"
	"github.com/tendant/framecompare/pkg/compare"
)

// Source describes a synthetic clip
type Source struct {
	Frames int
	Width  int
	Height int
}

// Provider serves synthetic clips keyed by path
type Provider struct {
	Sources map[string]Source

	// FailFrames makes GetFrame fail for the given absolute indexes
	FailFrames map[int]bool

	// FailEncode makes EncodePNG fail for the given paths
	FailEncode map[string]bool

	// AutoCrop is returned by DetectCrop; nil means ErrUnsupported
	AutoCrop *compare.Crop

	// OnGetFrame is called before each decode
	OnGetFrame func(path string, index int)

	mu      sync.Mutex
	decoded []Decode
}

// Decode records one GetFrame call
type Decode struct {
	Path  string
	Index int
}

// New returns a provider serving the given sources
func New(sources map[string]Source) *Provider {
	return &Provider{Sources: sources}
}

// Candidate wraps the provider as an always-available selector candidate
func (p *Provider) Candidate() provider.Candidate {
	return provider.Candidate{
		Name:  p.Name(),
		Probe: func(context.Context) error { return nil },
		New:   func() (provider.Provider, error) { return p, nil },
	}
}

// Decoded returns every GetFrame call so far
func (p *Provider) Decoded() []Decode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Decode(nil), p.decoded...)
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Capabilities() []provider.Capability {
	caps := []provider.Capability{
		provider.CapDecode, provider.CapResize, provider.CapCrop,
		provider.CapOverlay, provider.CapPNG,
	}
	if p.AutoCrop != nil {
		caps = append(caps, provider.CapAutoCrop)
	}
	return caps
}

func (p *Provider) Load(ctx context.Context, path string) (provider.Clip, error) {
	src, ok := p.Sources[path]
	if !ok {
		return nil, fmt.Errorf("no such source: %s", path)
	}
	return &Clip{path: path, src: src}, nil
}

func (p *Provider) GetFrame(ctx context.Context, c provider.Clip, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= c.FrameCount() {
		return nil, provider.ErrFrameOutOfRange
	}

	p.mu.Lock()
	p.decoded = append(p.decoded, Decode{Path: c.Path(), Index: index})
	p.mu.Unlock()

	if p.OnGetFrame != nil {
		p.OnGetFrame(c.Path(), index)
	}
	if p.FailFrames[index] {
		return nil, fmt.Errorf("decode failed at frame %d", index)
	}

	shade := uint8(index % 256)
	return imaging.New(c.Width(), c.Height(), color.NRGBA{R: shade, G: shade, B: shade, A: 255}), nil
}

func (p *Provider) Resize(frame image.Image, width, height int) image.Image {
	return raster.Resize(frame, width, height, imaging.NearestNeighbor)
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
	if p.FailEncode[path] {
		return fmt.Errorf("encode failed: %s", path)
	}
	return raster.SavePNG(frame, path)
}

func (p *Provider) DetectCrop(ctx context.Context, c provider.Clip) (compare.Crop, error) {
	if p.AutoCrop == nil {
		return compare.Crop{}, provider.ErrUnsupported
	}
	return *p.AutoCrop, nil
}

// Clip is a synthetic clip
type Clip struct {
	path   string
	src    Source
	Closed bool
}

func (c *Clip) Path() string    { return c.path }
func (c *Clip) FrameCount() int { return c.src.Frames }
func (c *Clip) Width() int      { return c.src.Width }
func (c *Clip) Height() int     { return c.src.Height }
func (c *Clip) Close() error    { c.Closed = true; return nil }
