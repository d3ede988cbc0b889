package audio

import (
	"time"
)

type Encoding interface {
	BytesPerSample() uint
	BytesForDuration(time.Duration) uint64
}

type EncodingPCM struct {
	PCMFormat  PCMFormat
	SampleRate SampleRate
}

var _ Encoding = EncodingPCM{}

func (e EncodingPCM) BytesPerSample() uint {
	return e.PCMFormat.Size()
}

// BytesForDuration returns the size of a single channel of the given
// duration, rounded down to a whole sample.
func (e EncodingPCM) BytesForDuration(d time.Duration) uint64 {
	samples := uint64(d) * uint64(e.SampleRate) / uint64(time.Second)
	return samples * uint64(e.BytesPerSample())
}
