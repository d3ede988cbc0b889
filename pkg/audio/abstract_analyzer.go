package audio

import (
	"context"
	"fmt"
	"io"
)

// AbstractAnalyzer is the common part of everything that consumes
// audio of a fixed encoding and channel layout.
type AbstractAnalyzer interface {
	io.Closer

	Encoding(context.Context) (Encoding, error)
	Channels(context.Context) (Channel, error)
}

// PCMLayout returns the PCM encoding and the channel count of the analyzer.
// It fails if the encoding is not PCM or if any of the values is zero.
func PCMLayout(
	ctx context.Context,
	a AbstractAnalyzer,
) (EncodingPCM, Channel, error) {
	channels, err := a.Channels(ctx)
	if err != nil {
		return EncodingPCM{}, 0, fmt.Errorf("unable to get the amount of channels: %w", err)
	}
	encoding, err := a.Encoding(ctx)
	if err != nil {
		return EncodingPCM{}, 0, fmt.Errorf("unable to get the encoding: %w", err)
	}
	encodingPCM, ok := encoding.(EncodingPCM)
	if !ok {
		return EncodingPCM{}, 0, fmt.Errorf("the encoding is not PCM: %T", encoding)
	}
	if encodingPCM.SampleRate == 0 || encodingPCM.BytesPerSample() == 0 || channels == 0 {
		return EncodingPCM{}, 0, fmt.Errorf("incomplete encoding %#+v with %d channels", encodingPCM, channels)
	}
	return encodingPCM, channels, nil
}
