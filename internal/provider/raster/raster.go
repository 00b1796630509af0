// Package raster holds the in-memory frame operations shared by providers
// that hand decoded frames back as images.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Resize scales the frame to exactly width x height
func Resize(frame image.Image, width, height int, filter imaging.ResampleFilter) image.Image {
	b := frame.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return frame
	}
	return imaging.Resize(frame, width, height, filter)
}

// Crop removes the given insets. Insets that leave no pixels are rejected.
func Crop(frame image.Image, left, top, right, bottom int) (image.Image, error) {
	if left < 0 || top < 0 || right < 0 || bottom < 0 {
		return nil, fmt.Errorf("negative crop inset")
	}
	b := frame.Bounds()
	w := b.Dx() - left - right
	h := b.Dy() - top - bottom
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("crop leaves %dx%d from %dx%d", w, h, b.Dx(), b.Dy())
	}
	rect := image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+left+w, b.Min.Y+top+h)
	return imaging.Crop(frame, rect), nil
}

// Blank returns a black frame
func Blank(width, height int) image.Image {
	return imaging.New(width, height, color.Black)
}

// Overlay draws white text with a black outline at pos.
// The 7x13 bitmap face is scaled up with the frame height so it stays legible.
func Overlay(frame image.Image, text string, pos image.Point) image.Image {
	dst := imaging.Clone(frame)

	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Height
	if w <= 0 {
		return dst
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	scale := textScale(dst.Bounds().Dy())
	var m image.Image = mask
	if scale > 1 {
		m = imaging.Resize(mask, w*scale, h*scale, imaging.NearestNeighbor)
	}

	r := m.Bounds().Add(pos.Sub(m.Bounds().Min))
	for _, off := range outline(scale) {
		draw.DrawMask(dst, r.Add(off), image.Black, image.Point{}, m, m.Bounds().Min, draw.Over)
	}
	draw.DrawMask(dst, r, image.White, image.Point{}, m, m.Bounds().Min, draw.Over)

	return dst
}

// SavePNG writes the frame, creating the parent directory
func SavePNG(frame image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := imaging.Save(frame, path); err != nil {
		return fmt.Errorf("failed to save png: %w", err)
	}
	return nil
}

func textScale(frameHeight int) int {
	s := frameHeight / 360
	if s < 1 {
		return 1
	}
	return s
}

func outline(scale int) []image.Point {
	o := scale
	return []image.Point{
		{-o, 0}, {o, 0}, {0, -o}, {0, o},
		{-o, -o}, {o, o}, {-o, o}, {o, -o},
	}
}
