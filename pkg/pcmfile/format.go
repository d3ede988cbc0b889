package pcmfile

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Format uint

const (
	FormatUndefined = Format(iota)
	FormatRaw
	FormatWAV
	FormatOgg
	endOfFormat
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "<undefined>"
	case FormatRaw:
		return "raw"
	case FormatWAV:
		return "wav"
	case FormatOgg:
		return "ogg"
	default:
		return fmt.Sprintf("<unknown_%d>", uint(f))
	}
}

func ParseFormat(s string) (Format, error) {
	for f := FormatRaw; f < endOfFormat; f++ {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown file format '%s'", s)
}

// FormatFromPath guesses the format by the file extension,
// falling back to raw S16LE.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".ogg", ".oga":
		return FormatOgg
	default:
		return FormatRaw
	}
}
