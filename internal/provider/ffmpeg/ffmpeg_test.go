package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/framecompare/pkg/compare"
)

func TestParseProbe(t *testing.T) {
	t.Run("nb_frames", func(t *testing.T) {
		info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,
			"nb_frames":"34046","avg_frame_rate":"24000/1001","duration":"1419.960"}]}`))
		require.NoError(t, err)
		assert.Equal(t, 34046, info.frames)
		assert.Equal(t, 1920, info.width)
		assert.InDelta(t, 23.976, info.fps, 0.001)
	})

	t.Run("matroska tag", func(t *testing.T) {
		info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":1280,"height":720,
			"avg_frame_rate":"24/1","tags":{"NUMBER_OF_FRAMES-eng":"1200"}}]}`))
		require.NoError(t, err)
		assert.Equal(t, 1200, info.frames)
		assert.InDelta(t, 50.0, info.duration(), 0.001)
	})

	t.Run("duration fallback", func(t *testing.T) {
		info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":640,"height":480,
			"r_frame_rate":"25/1"}],"format":{"duration":"10.0"}}`))
		require.NoError(t, err)
		assert.Equal(t, 250, info.frames)
	})

	t.Run("audio only", func(t *testing.T) {
		_, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`))
		assert.Error(t, err)
	})
}

func TestParseCropDetect(t *testing.T) {
	stderr := strings.Join([]string{
		"[Parsed_cropdetect_0 @ 0x1] x1:0 x2:1919 y1:140 y2:939 w:1920 h:800 x:0 y:140 pts:1 t:0.04 crop=1920:800:0:140",
		"[Parsed_cropdetect_0 @ 0x1] x1:0 x2:1919 y1:138 y2:941 w:1920 h:800 x:0 y:140 pts:2 t:0.08 crop=1920:804:0:138",
	}, "\n")

	crop, ok := parseCropDetect(stderr, 1920, 1080)
	require.True(t, ok)
	assert.Equal(t, compare.Crop{Left: 0, Top: 138, Right: 0, Bottom: 138}, crop)

	_, ok = parseCropDetect("no crop here", 1920, 1080)
	assert.False(t, ok)
}

func TestMinInsets(t *testing.T) {
	got := minInsets(compare.Crop{Left: 4, Top: 140, Bottom: 140}, compare.Crop{Left: 0, Top: 138, Bottom: 142})
	assert.Equal(t, compare.Crop{Top: 138, Bottom: 140}, got)
}

func TestFrameArgsSelectsSingleFrame(t *testing.T) {
	args := strings.Join(frameArgs("in.mkv", 42, 0), " ")
	assert.Contains(t, args, "in.mkv")
	assert.NotContains(t, args, "-ss")
	assert.Contains(t, args, "start_frame=42")
	assert.Contains(t, args, "end_frame=43")
	assert.Contains(t, args, "image2pipe")
}

func TestFrameArgsSeeksNearTheFrame(t *testing.T) {
	t.Run("deep frame", func(t *testing.T) {
		args := frameArgs("in.mkv", 100000, 24)
		joined := strings.Join(args, " ")

		// seek to frame 99976 minus half a frame, then count 24 frames
		require.Contains(t, args, "-ss")
		assert.Contains(t, joined, "-ss 4165.645833")
		assert.Contains(t, joined, "start_frame=24")
		assert.Contains(t, joined, "end_frame=25")
	})

	t.Run("near the start", func(t *testing.T) {
		joined := strings.Join(frameArgs("in.mkv", 10, 24), " ")
		assert.NotContains(t, joined, "-ss")
		assert.Contains(t, joined, "start_frame=10")
	})
}

func TestVariableRateIsNotSeeked(t *testing.T) {
	cfr, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,
		"nb_frames":"1000","avg_frame_rate":"24000/1001","r_frame_rate":"24000/1001"}]}`))
	require.NoError(t, err)
	assert.True(t, cfr.constantRate())

	vfr, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,
		"nb_frames":"1000","avg_frame_rate":"2997/125","r_frame_rate":"60/1"}]}`))
	require.NoError(t, err)
	assert.False(t, vfr.constantRate())
}
