package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

type NoiseSuppression interface {
	io.Closer

	Encoding(context.Context) (audio.Encoding, error)
	Channels(context.Context) (audio.Channel, error)

	// ChunkSize is the size (in bytes) of the smallest unit the
	// implementation can process. Inputs to SuppressNoise must be
	// a multiple of it.
	ChunkSize() uint

	// SuppressNoise writes the processed input to outputVoice and returns
	// the highest voice confidence (0..1) met among the processed chunks.
	SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (float64, error)
}
