package ffmpeg

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	NbFrames     string            `json:"nb_frames"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
}

type probeInfo struct {
	frames  int
	width   int
	height  int
	fps     float64
	seconds float64

	// variable is set when the average and base frame rates disagree
	variable bool
}

// constantRate reports whether frame indices map to timestamps by fps
func (i probeInfo) constantRate() bool {
	return i.fps > 0 && !i.variable
}

func (i probeInfo) duration() float64 {
	if i.seconds > 0 {
		return i.seconds
	}
	if i.fps > 0 {
		return float64(i.frames) / i.fps
	}
	return 0
}

// parseProbe reads ffprobe JSON. The frame count comes from nb_frames, then a
// NUMBER_OF_FRAMES tag (matroska), then duration times frame rate.
func parseProbe(data []byte) (probeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return probeInfo{}, fmt.Errorf("invalid ffprobe output: %w", err)
	}

	var vs *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			vs = &out.Streams[i]
			break
		}
	}
	if vs == nil {
		return probeInfo{}, fmt.Errorf("no video stream")
	}
	if vs.Width <= 0 || vs.Height <= 0 {
		return probeInfo{}, fmt.Errorf("video stream has no dimensions")
	}

	info := probeInfo{
		width:  vs.Width,
		height: vs.Height,
		fps:    parseRate(vs.AvgFrameRate),
	}
	base := parseRate(vs.RFrameRate)
	if info.fps == 0 {
		info.fps = base
	}
	if base > 0 && math.Abs(info.fps-base)/base > 0.01 {
		info.variable = true
	}
	info.seconds = parseFloat(vs.Duration)
	if info.seconds == 0 {
		info.seconds = parseFloat(out.Format.Duration)
	}

	if n, err := strconv.Atoi(vs.NbFrames); err == nil && n > 0 {
		info.frames = n
	}
	if info.frames == 0 {
		for k, v := range vs.Tags {
			if strings.HasPrefix(strings.ToUpper(k), "NUMBER_OF_FRAMES") {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					info.frames = n
					break
				}
			}
		}
	}
	if info.frames == 0 && info.seconds > 0 && info.fps > 0 {
		info.frames = int(math.Round(info.seconds * info.fps))
	}
	if info.frames == 0 {
		return probeInfo{}, fmt.Errorf("could not determine frame count")
	}

	return info, nil
}

// parseRate parses "24000/1001" style rates
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
