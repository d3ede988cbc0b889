package speex

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

const (
	// SampleRate is the only sample rate the engine is initialized with.
	SampleRate = audio.SampleRate(16000)

	PCMFormat = audio.PCMFormatS16LE
)

// VADProbabilities are the speech probabilities (in percent) required
// to enter and to stay in the "voice" state.
type VADProbabilities struct {
	Start    int `yaml:"start"`
	Continue int `yaml:"continue"`
}

// DefaultVADProbabilities are the values libspeexdsp starts with.
var DefaultVADProbabilities = VADProbabilities{
	Start:    35,
	Continue: 20,
}

type Config struct {
	ChunkSamples int `yaml:"chunk_samples"`

	// AutoGain is the target level of the automatic gain control.
	AutoGain Option[float32] `yaml:"auto_gain"`

	// NoiseSuppression is the maximal attenuation of the noise, in dB.
	// The engine treats the value as an attenuation regardless of the sign.
	NoiseSuppression Option[int] `yaml:"noise_suppression"`

	VoiceDetection Option[VADProbabilities] `yaml:"voice_detection"`
}

// ConfigFromLevels builds a Config using the numeric convention where
// autoGain <= 0 disables AGC and noiseSuppression == 0 disables denoising.
func ConfigFromLevels(
	chunkSamples int,
	autoGain float32,
	noiseSuppression int,
) Config {
	cfg := Config{
		ChunkSamples: chunkSamples,
	}
	if autoGain > 0 {
		cfg.AutoGain = Enabled(autoGain)
	}
	if noiseSuppression != 0 {
		cfg.NoiseSuppression = Enabled(noiseSuppression)
	}
	return cfg
}

func (cfg Config) ChunkBytes() int {
	return cfg.ChunkSamples * int(PCMFormat.Size())
}

func (cfg Config) String() string {
	return fmt.Sprintf(
		"chunk_samples:%d auto_gain:%s noise_suppression:%s voice_detection:%s",
		cfg.ChunkSamples, cfg.AutoGain, cfg.NoiseSuppression, cfg.VoiceDetection,
	)
}

func (cfg Config) Validate() error {
	if cfg.ChunkSamples <= 0 {
		return fmt.Errorf("%w: the chunk size must be positive, but it is %d samples", ErrInvalidConfiguration, cfg.ChunkSamples)
	}
	if cfg.ChunkSamples > math.MaxInt32 {
		return fmt.Errorf("%w: the chunk size must fit the engine's int, but it is %d samples", ErrInvalidConfiguration, cfg.ChunkSamples)
	}
	if level, ok := cfg.AutoGain.Get(); ok && level <= 0 {
		return fmt.Errorf("%w: the AGC level must be positive when AGC is enabled, but it is %v", ErrInvalidConfiguration, level)
	}
	if level, ok := cfg.NoiseSuppression.Get(); ok && level == 0 {
		return fmt.Errorf("%w: the noise suppression level must be non-zero when noise suppression is enabled", ErrInvalidConfiguration)
	}
	if probs, ok := cfg.VoiceDetection.Get(); ok {
		if !isPercent(probs.Start) || !isPercent(probs.Continue) {
			return fmt.Errorf("%w: VAD probabilities must be within [0, 100], but they are %d and %d", ErrInvalidConfiguration, probs.Start, probs.Continue)
		}
	}
	return nil
}

func isPercent(v int) bool {
	return v >= 0 && v <= 100
}
