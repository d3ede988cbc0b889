package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

// NoVoice is the position FindNextVoice reports when no window
// passed the confidence threshold.
const NoVoice = time.Duration(-1)

type VAD interface {
	audio.AbstractAnalyzer

	// FindNextVoice scans samples until voice was detected for at least
	// minDuration. It returns the highest confidence met and the position
	// of the first window classified as voice (NoVoice if none).
	FindNextVoice(
		_ context.Context,
		samples []byte,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)
}

// Found reports whether pos is an actual voice position.
func Found(pos time.Duration) bool {
	return pos != NoVoice
}
