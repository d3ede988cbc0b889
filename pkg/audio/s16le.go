package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const bytesPerS16 = 2

// DecodeS16LE fills dst with the little-endian signed 16-bit samples of src.
func DecodeS16LE(dst []int16, src []byte) error {
	if len(src) != len(dst)*bytesPerS16 {
		return fmt.Errorf("the input size does not match the sample buffer: %d != %d*%d", len(src), len(dst), bytesPerS16)
	}
	for idx := range dst {
		dst[idx] = int16(binary.LittleEndian.Uint16(src[idx*bytesPerS16:]))
	}
	return nil
}

// EncodeS16LE is the inverse of DecodeS16LE.
func EncodeS16LE(dst []byte, src []int16) error {
	if len(dst) != len(src)*bytesPerS16 {
		return fmt.Errorf("the output size does not match the sample buffer: %d != %d*%d", len(dst), len(src), bytesPerS16)
	}
	for idx, v := range src {
		binary.LittleEndian.PutUint16(dst[idx*bytesPerS16:], uint16(v))
	}
	return nil
}

// MeanAbsS16LE returns the average absolute sample value of S16LE audio.
// A trailing odd byte is ignored.
func MeanAbsS16LE(pcm []byte) float64 {
	count := len(pcm) / bytesPerS16
	if count == 0 {
		return 0
	}
	var sum float64
	for idx := 0; idx < count; idx++ {
		v := int16(binary.LittleEndian.Uint16(pcm[idx*bytesPerS16:]))
		sum += math.Abs(float64(v))
	}
	return sum / float64(count)
}

// Float32ToS16 converts a normalized float sample to S16, clipping
// anything outside of [-1, 1].
func Float32ToS16(v float32) int16 {
	scaled := math.Round(float64(v) * math.MaxInt16)
	switch {
	case scaled > math.MaxInt16:
		return math.MaxInt16
	case scaled < math.MinInt16:
		return math.MinInt16
	}
	return int16(scaled)
}
