//go:build speexdsp
// +build speexdsp

package speex

/*
#cgo pkg-config: speexdsp
#include <speex/speex_preprocess.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

var DefaultEngineFactory EngineFactory = NewSpeexDSPEngine

type SpeexDSPEngine struct {
	state        *C.SpeexPreprocessState
	chunkSamples int
}

var _ Engine = (*SpeexDSPEngine)(nil)

func NewSpeexDSPEngine(chunkSamples int, sampleRate audio.SampleRate) (Engine, error) {
	state := C.speex_preprocess_state_init(C.int(chunkSamples), C.int(sampleRate))
	if state == nil {
		return nil, fmt.Errorf("speex_preprocess_state_init(%d, %d) returned NULL", chunkSamples, sampleRate)
	}
	return &SpeexDSPEngine{
		state:        state,
		chunkSamples: chunkSamples,
	}, nil
}

func (e *SpeexDSPEngine) ctl(request C.int, ptr unsafe.Pointer) error {
	if e.state == nil {
		return fmt.Errorf("the engine is already destroyed")
	}
	if rc := C.speex_preprocess_ctl(e.state, request, ptr); rc != 0 {
		return fmt.Errorf("speex_preprocess_ctl(%d) returned %d", int(request), int(rc))
	}
	return nil
}

func (e *SpeexDSPEngine) ctlInt(request C.int, value int) error {
	v := C.spx_int32_t(value)
	return e.ctl(request, unsafe.Pointer(&v))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (e *SpeexDSPEngine) SetDenoise(enabled bool) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_DENOISE, boolToInt(enabled))
}

func (e *SpeexDSPEngine) SetNoiseSuppress(levelDB int) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_NOISE_SUPPRESS, levelDB)
}

func (e *SpeexDSPEngine) SetAGC(enabled bool) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_AGC, boolToInt(enabled))
}

func (e *SpeexDSPEngine) SetAGCLevel(level float32) error {
	v := C.float(level)
	return e.ctl(C.SPEEX_PREPROCESS_SET_AGC_LEVEL, unsafe.Pointer(&v))
}

func (e *SpeexDSPEngine) SetVAD(enabled bool) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_VAD, boolToInt(enabled))
}

func (e *SpeexDSPEngine) SetProbStart(percent int) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_PROB_START, percent)
}

func (e *SpeexDSPEngine) SetProbContinue(percent int) error {
	return e.ctlInt(C.SPEEX_PREPROCESS_SET_PROB_CONTINUE, percent)
}

func (e *SpeexDSPEngine) Run(samples []int16) (bool, error) {
	if e.state == nil {
		return false, fmt.Errorf("the engine is already destroyed")
	}
	if len(samples) != e.chunkSamples {
		return false, fmt.Errorf("expected %d samples, received %d", e.chunkSamples, len(samples))
	}
	isVoice := C.speex_preprocess_run(
		e.state,
		(*C.spx_int16_t)(unsafe.Pointer(unsafe.SliceData(samples))),
	)
	return isVoice != 0, nil
}

func (e *SpeexDSPEngine) Destroy() error {
	if e.state == nil {
		return nil
	}
	C.speex_preprocess_state_destroy(e.state)
	e.state = nil
	return nil
}
