// Package noisesuppression implements a VAD on top of the voice
// confidence reported by a noise suppressor.
package noisesuppression

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speexnoise/pkg/audio"
	"github.com/xaionaro-go/speexnoise/pkg/noisesuppression"
	"github.com/xaionaro-go/speexnoise/pkg/vad"
)

type VAD struct {
	noisesuppression.NoiseSuppression
	WindowSize     uint64
	WindowDuration time.Duration
	Buffer         []byte
}

var _ vad.VAD = (*VAD)(nil)

// NewVAD picks an analysis window that is the whole number of
// noise suppression chunks closest to preferredGranularity.
func NewVAD(
	ctx context.Context,
	noiseSuppression noisesuppression.NoiseSuppression,
	preferredGranularity time.Duration,
) (*VAD, error) {
	chunkSize := uint64(noiseSuppression.ChunkSize())
	if chunkSize == 0 {
		return nil, fmt.Errorf("the noise suppression has no fixed chunk size")
	}
	encodingPCM, channels, err := audio.PCMLayout(ctx, noiseSuppression)
	if err != nil {
		return nil, fmt.Errorf("unable to get the noise suppression layout: %w", err)
	}

	preferredWindowSize := encodingPCM.BytesForDuration(preferredGranularity) * uint64(channels)
	chunks := (preferredWindowSize + chunkSize/2) / chunkSize
	if chunks < 1 {
		chunks = 1
	}
	windowSize := chunks * chunkSize
	windowSamples := windowSize / uint64(encodingPCM.BytesPerSample()) / uint64(channels)
	windowDuration := time.Duration(uint64(time.Second) * windowSamples / uint64(encodingPCM.SampleRate))
	logger.Debugf(ctx, "resulting windowSize:%d and windowDuration:%v", windowSize, windowDuration)

	return &VAD{
		NoiseSuppression: noiseSuppression,
		WindowSize:       windowSize,
		WindowDuration:   windowDuration,
		Buffer:           make([]byte, windowSize),
	}, nil
}

// FindNextVoice implements vad.VAD. A trailing part of samples
// shorter than a window is ignored.
func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (float64, time.Duration, error) {
	var maxConfidence float64
	var foundVoiceFor time.Duration
	firstVoiceDetection := vad.NoVoice

	windowSize := v.WindowSize
	for pos := 0; uint64(len(samples)) >= windowSize; pos++ {
		window := samples[:windowSize]
		samples = samples[windowSize:]
		voiceConfidence, err := v.NoiseSuppression.SuppressNoise(ctx, window, v.Buffer)
		if err != nil {
			return maxConfidence, firstVoiceDetection, fmt.Errorf("unable to analyze window #%d: %w", pos, err)
		}

		if voiceConfidence > maxConfidence {
			maxConfidence = voiceConfidence
		}

		if voiceConfidence >= confidenceThreshold {
			foundVoiceFor += v.WindowDuration
			if !vad.Found(firstVoiceDetection) {
				firstVoiceDetection = v.WindowDuration * time.Duration(pos)
			}
		}

		if vad.Found(firstVoiceDetection) && foundVoiceFor >= minDuration {
			return maxConfidence, firstVoiceDetection, nil
		}
	}
	return maxConfidence, firstVoiceDetection, nil
}
