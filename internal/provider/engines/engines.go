// Package engines lists the decode engines in preference order
package engines

import (
	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/ffmpeg"
	"github.com/tendant/framecompare/internal/provider/imageseq"
)

// Default returns ffmpeg first, then the image sequence reader
func Default(ff ffmpeg.Config, log *zap.Logger) []provider.Candidate {
	return []provider.Candidate{
		ffmpeg.Candidate(ff, log),
		imageseq.Candidate(log),
	}
}
