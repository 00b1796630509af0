package provider

import (
	"context"
	"image"

	"github.com/tendant/framecompare/pkg/compare"
)

// Capability names an operation a provider can perform
type Capability string

// Capability constants
const (
	CapDecode   Capability = "decode"
	CapResize   Capability = "resize"
	CapCrop     Capability = "crop"
	CapOverlay  Capability = "overlay"
	CapPNG      Capability = "png"
	CapAutoCrop Capability = "autocrop"
)

// Clip is a loaded source owned by the provider that loaded it
type Clip interface {
	Path() string
	FrameCount() int
	Width() int
	Height() int
	Close() error
}

// Provider is a decode engine plus the frame operations done with it.
// Implementations are not required to be safe for concurrent use.
type Provider interface {
	Name() string
	Capabilities() []Capability

	// Load opens a source and reads its frame count and geometry
	Load(ctx context.Context, path string) (Clip, error)

	// GetFrame decodes exactly one frame by absolute index
	GetFrame(ctx context.Context, clip Clip, index int) (image.Image, error)

	Resize(frame image.Image, width, height int) image.Image
	Crop(frame image.Image, left, top, right, bottom int) (image.Image, error)

	// Blank returns a black frame used for padding
	Blank(width, height int) image.Image

	OverlayText(frame image.Image, text string, pos image.Point) image.Image
	EncodePNG(frame image.Image, path string) error

	// DetectCrop returns ErrUnsupported when the engine has no crop detection
	DetectCrop(ctx context.Context, clip Clip) (compare.Crop, error)
}

// Has reports whether p advertises capability c
func Has(p Provider, c Capability) bool {
	for _, have := range p.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}
