package speex

import (
	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

// Engine is a single instance of the preprocessing engine.
// It keeps adaptive state between calls of Run and is not safe
// for concurrent use.
type Engine interface {
	SetDenoise(enabled bool) error
	SetNoiseSuppress(levelDB int) error
	SetAGC(enabled bool) error
	SetAGCLevel(level float32) error
	SetVAD(enabled bool) error
	SetProbStart(percent int) error
	SetProbContinue(percent int) error

	// Run processes exactly one chunk in place. It reports whether the
	// chunk was classified as voice; without VAD every chunk is voice.
	Run(samples []int16) (bool, error)

	Destroy() error
}

type EngineFactory func(chunkSamples int, sampleRate audio.SampleRate) (Engine, error)
