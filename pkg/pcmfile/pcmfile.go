// Package pcmfile reads and writes S16LE audio stored as raw PCM,
// WAV or Ogg Vorbis files.
package pcmfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hashicorp/go-multierror"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

const wavFormatPCM = 1

type Data struct {
	PCM        []byte
	SampleRate audio.SampleRate
	Channels   audio.Channel
}

// Read loads the file as S16LE. Raw files carry no header,
// so rawSampleRate and mono are assumed for them.
func Read(
	path string,
	format Format,
	rawSampleRate audio.SampleRate,
) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	data, err := Decode(f, format, rawSampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s' as %s: %w", path, format, err)
	}
	return data, nil
}

func Decode(
	r io.ReadSeeker,
	format Format,
	rawSampleRate audio.SampleRate,
) (*Data, error) {
	switch format {
	case FormatRaw:
		return decodeRaw(r, rawSampleRate)
	case FormatWAV:
		return decodeWAV(r)
	case FormatOgg:
		return decodeOgg(r)
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

func decodeRaw(r io.Reader, sampleRate audio.SampleRate) (*Data, error) {
	pcm, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("the size of S16LE data must be even, but it is %d", len(pcm))
	}
	return &Data{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   1,
	}, nil
}

func decodeWAV(r io.ReadSeeker) (*Data, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("only 16-bit WAV is supported, but the file is %d-bit", dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unable to read the PCM data: %w", err)
	}
	if buf == nil {
		return nil, fmt.Errorf("empty wav buffer")
	}

	samples := make([]int16, len(buf.Data))
	for idx, v := range buf.Data {
		samples[idx] = int16(v)
	}
	pcm := make([]byte, len(samples)*2)
	if err := audio.EncodeS16LE(pcm, samples); err != nil {
		return nil, err
	}
	return &Data{
		PCM:        pcm,
		SampleRate: audio.SampleRate(dec.SampleRate),
		Channels:   audio.Channel(dec.NumChans),
	}, nil
}

func decodeOgg(r io.Reader) (*Data, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}

	var pcm bytes.Buffer
	floats := make([]float32, 4096)
	samples := make([]int16, len(floats))
	raw := make([]byte, len(floats)*2)
	for {
		n, err := oggReader.Read(floats)
		for idx := 0; idx < n; idx++ {
			samples[idx] = audio.Float32ToS16(floats[idx])
		}
		if encErr := audio.EncodeS16LE(raw[:n*2], samples[:n]); encErr != nil {
			return nil, encErr
		}
		pcm.Write(raw[:n*2])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read vorbis samples: %w", err)
		}
	}

	return &Data{
		PCM:        pcm.Bytes(),
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
		Channels:   audio.Channel(oggReader.Channels()),
	}, nil
}

type countingWriteSeeker struct {
	*datacounter.WriterCounter
	io.Seeker
}

// Write stores data as a raw or WAV file and returns the amount of bytes
// written. For WAV the header fields patched on finalization are counted
// again.
func Write(
	path string,
	format Format,
	data *Data,
) (_ret uint64, _err error) {
	switch format {
	case FormatRaw, FormatWAV:
	default:
		return 0, fmt.Errorf("writing %s files is not supported", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			_err = multierror.Append(_err, fmt.Errorf("unable to close '%s': %w", path, err)).ErrorOrNil()
		}
	}()

	wc := datacounter.NewWriterCounter(f)
	if format == FormatRaw {
		if _, err := wc.Write(data.PCM); err != nil {
			return wc.Count(), fmt.Errorf("unable to write to '%s': %w", path, err)
		}
		return wc.Count(), nil
	}
	err = EncodeWAV(countingWriteSeeker{WriterCounter: wc, Seeker: f}, data)
	return wc.Count(), err
}

func EncodeWAV(w io.WriteSeeker, data *Data) error {
	if len(data.PCM)%2 != 0 {
		return fmt.Errorf("the size of S16LE data must be even, but it is %d", len(data.PCM))
	}
	samples := make([]int16, len(data.PCM)/2)
	if err := audio.DecodeS16LE(samples, data.PCM); err != nil {
		return err
	}
	ints := make([]int, len(samples))
	for idx, v := range samples {
		ints[idx] = int(v)
	}

	enc := wav.NewEncoder(w, int(data.SampleRate), 16, int(data.Channels), wavFormatPCM)
	err := enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(data.Channels),
			SampleRate:  int(data.SampleRate),
		},
		Data:           ints,
		SourceBitDepth: 16,
	})
	if err != nil {
		return fmt.Errorf("unable to write the WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
