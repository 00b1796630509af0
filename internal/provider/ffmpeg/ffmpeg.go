// Package ffmpeg decodes video sources by shelling out to ffmpeg and ffprobe.
// Frame extraction is frame accurate: constant rate sources are seeked to a
// point shortly before the wanted frame and the index is then counted after
// decode. Variable rate sources are always decoded from the start.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/raster"
	"github.com/tendant/framecompare/pkg/compare"
)

const Name = "ffmpeg"

// Config holds ffmpeg settings
type Config struct {
	FFmpegPath   string
	ProbeTimeout time.Duration

	// CropSamples is how many evenly spaced positions cropdetect looks at
	CropSamples int
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 30 * time.Second
	}
	if c.CropSamples <= 0 {
		c.CropSamples = 3
	}
	return c
}

// Provider implements provider.Provider on top of the ffmpeg binaries
type Provider struct {
	cfg Config
	log *zap.Logger
}

// New creates an ffmpeg provider
func New(cfg Config, log *zap.Logger) *Provider {
	return &Provider{cfg: cfg.withDefaults(), log: log.Named("ffmpeg")}
}

// Candidate returns the selector entry for ffmpeg
func Candidate(cfg Config, log *zap.Logger) provider.Candidate {
	cfg = cfg.withDefaults()
	return provider.Candidate{
		Name: Name,
		Probe: func(ctx context.Context) error {
			if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
				return fmt.Errorf("ffmpeg not found: %w", err)
			}
			// ffmpeg-go's probe always runs ffprobe from PATH
			if _, err := exec.LookPath("ffprobe"); err != nil {
				return fmt.Errorf("ffprobe not found: %w", err)
			}
			return nil
		},
		New: func() (provider.Provider, error) {
			return New(cfg, log), nil
		},
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
		provider.CapAutoCrop,
	}
}

// Load probes the source for its frame count and geometry
func (p *Provider) Load(ctx context.Context, path string) (provider.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := ffmpeg.ProbeWithTimeout(path, p.cfg.ProbeTimeout, ffmpeg.KwArgs{"select_streams": "v:0"})
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	info, err := parseProbe([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	p.log.Debug("source probed",
		zap.String("path", path),
		zap.Int("frames", info.frames),
		zap.Int("width", info.width),
		zap.Int("height", info.height),
		zap.Float64("fps", info.fps))

	return &clip{path: path, info: info}, nil
}

// GetFrame decodes one frame by absolute index
func (p *Provider) GetFrame(ctx context.Context, c provider.Clip, index int) (image.Image, error) {
	if index < 0 || index >= c.FrameCount() {
		return nil, provider.ErrFrameOutOfRange
	}

	fps := 0.0
	if cl, ok := c.(*clip); ok && cl.info.constantRate() {
		fps = cl.info.fps
	}

	args := frameArgs(c.Path(), index, fps)
	stdout, err := p.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frame %d from %s: %w", index, c.Path(), err)
	}
	if len(stdout) == 0 {
		return nil, fmt.Errorf("frame %d of %s produced no output", index, c.Path())
	}

	img, err := png.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", index, err)
	}
	return img, nil
}

func (p *Provider) Resize(frame image.Image, width, height int) image.Image {
	return raster.Resize(frame, width, height, imaging.Lanczos)
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

// DetectCrop runs cropdetect at a few positions and keeps the smallest inset
// per edge, so content visible at any sample survives.
func (p *Provider) DetectCrop(ctx context.Context, c provider.Clip) (compare.Crop, error) {
	cl, ok := c.(*clip)
	if !ok {
		return compare.Crop{}, fmt.Errorf("clip was not loaded by ffmpeg")
	}

	var (
		result  compare.Crop
		samples int
	)
	for i := 1; i <= p.cfg.CropSamples; i++ {
		at := cl.info.duration() * float64(i) / float64(p.cfg.CropSamples+1)

		_, stderr, err := p.runWithStderr(ctx, cropDetectArgs(cl.path, at))
		if err != nil {
			return compare.Crop{}, fmt.Errorf("cropdetect failed: %w", err)
		}

		insets, ok := parseCropDetect(stderr, cl.info.width, cl.info.height)
		if !ok {
			p.log.Debug("cropdetect gave no result", zap.String("path", cl.path), zap.Float64("at", at))
			continue
		}

		if samples == 0 {
			result = insets
		} else {
			result = minInsets(result, insets)
		}
		samples++
	}

	if samples == 0 {
		return compare.Crop{}, fmt.Errorf("cropdetect produced no result for %s", cl.path)
	}
	return result, nil
}

func (p *Provider) run(ctx context.Context, args []string) ([]byte, error) {
	stdout, _, err := p.runWithStderr(ctx, args)
	return stdout, err
}

func (p *Provider) runWithStderr(ctx context.Context, args []string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		return nil, stderr.String(), fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), stderr.String(), nil
}

// frameArgs builds a graph that keeps exactly one decoded frame. With a known
// constant fps the input is seeked about a second ahead of the frame; the seek
// point sits half a frame before the first kept frame so rounding never moves
// the count. fps 0 decodes from the first frame.
func frameArgs(path string, index int, fps float64) []string {
	start := 0
	if fps > 0 {
		start = max(0, index-int(math.Ceil(fps)))
	}

	in := ffmpeg.KwArgs{}
	if start > 0 {
		in["ss"] = strconv.FormatFloat((float64(start)-0.5)/fps, 'f', 6, 64)
	}

	offset := index - start
	return ffmpeg.Input(path, in).
		Filter("trim", ffmpeg.Args{}, ffmpeg.KwArgs{"start_frame": offset, "end_frame": offset + 1}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"f":       "image2pipe",
			"c:v":     "png",
			"pix_fmt": "rgb24",
		}).
		GetArgs()
}

func cropDetectArgs(path string, at float64) []string {
	return ffmpeg.Input(path, ffmpeg.KwArgs{"ss": strconv.FormatFloat(at, 'f', 3, 64)}).
		Filter("cropdetect", ffmpeg.Args{}).
		Output("-", ffmpeg.KwArgs{"frames:v": 10, "f": "null"}).
		GetArgs()
}

var cropLine = regexp.MustCompile(`crop=(\d+):(\d+):(\d+):(\d+)`)

// parseCropDetect turns the last "crop=w:h:x:y" line into insets
func parseCropDetect(stderr string, width, height int) (compare.Crop, bool) {
	matches := cropLine.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return compare.Crop{}, false
	}
	m := matches[len(matches)-1]

	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	if w <= 0 || h <= 0 {
		return compare.Crop{}, false
	}

	return compare.Crop{
		Left:   x,
		Top:    y,
		Right:  clampZero(width - w - x),
		Bottom: clampZero(height - h - y),
	}, true
}

func minInsets(a, b compare.Crop) compare.Crop {
	return compare.Crop{
		Left:   min(a.Left, b.Left),
		Top:    min(a.Top, b.Top),
		Right:  min(a.Right, b.Right),
		Bottom: min(a.Bottom, b.Bottom),
	}
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

type clip struct {
	path string
	info probeInfo
}

func (c *clip) Path() string    { return c.path }
func (c *clip) FrameCount() int { return c.info.frames }
func (c *clip) Width() int      { return c.info.width }
func (c *clip) Height() int     { return c.info.height }
func (c *clip) Close() error    { return nil }
