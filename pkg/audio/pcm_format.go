package audio

import (
	"fmt"
)

type SampleRate uint32

type Channel uint32

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS16BE
	PCMFormatS32LE
	PCMFormatS32BE
	PCMFormatFloat32LE
	PCMFormatFloat32BE
	endOfPCMFormat
)

func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	case PCMFormatS32LE, PCMFormatS32BE, PCMFormatFloat32LE, PCMFormatFloat32BE:
		return 4
	default:
		return 0
	}
}

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "<undefined>"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatS32BE:
		return "s32be"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat32BE:
		return "f32be"
	default:
		return fmt.Sprintf("<unknown_%d>", uint(f))
	}
}

func ParsePCMFormat(s string) (PCMFormat, error) {
	for f := PCMFormatU8; f < endOfPCMFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PCMFormatUndefined, fmt.Errorf("unknown PCM format '%s'", s)
}
