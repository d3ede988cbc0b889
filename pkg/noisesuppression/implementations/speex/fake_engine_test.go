package speex

import (
	"fmt"

	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

type fakeEngine struct {
	ChunkSamples int
	SampleRate   audio.SampleRate

	Calls     []string
	Destroyed int

	FailOn     string
	RunErr     error
	IsVoice    bool
	Transform  func([]int16)
	DestroyErr error
}

var _ Engine = (*fakeEngine)(nil)

type fakeEngineFactory struct {
	Engines []*fakeEngine
	Prepare func(*fakeEngine)
	Err     error
}

func (f *fakeEngineFactory) New(chunkSamples int, sampleRate audio.SampleRate) (Engine, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	e := &fakeEngine{
		ChunkSamples: chunkSamples,
		SampleRate:   sampleRate,
		IsVoice:      true,
	}
	if f.Prepare != nil {
		f.Prepare(e)
	}
	f.Engines = append(f.Engines, e)
	return e, nil
}

func (e *fakeEngine) call(name string, value any) error {
	call := fmt.Sprintf("%s(%v)", name, value)
	e.Calls = append(e.Calls, call)
	if e.FailOn == name {
		return fmt.Errorf("%s is rejected", call)
	}
	return nil
}

func (e *fakeEngine) SetDenoise(enabled bool) error {
	return e.call("SetDenoise", enabled)
}

func (e *fakeEngine) SetNoiseSuppress(levelDB int) error {
	return e.call("SetNoiseSuppress", levelDB)
}

func (e *fakeEngine) SetAGC(enabled bool) error {
	return e.call("SetAGC", enabled)
}

func (e *fakeEngine) SetAGCLevel(level float32) error {
	return e.call("SetAGCLevel", level)
}

func (e *fakeEngine) SetVAD(enabled bool) error {
	return e.call("SetVAD", enabled)
}

func (e *fakeEngine) SetProbStart(percent int) error {
	return e.call("SetProbStart", percent)
}

func (e *fakeEngine) SetProbContinue(percent int) error {
	return e.call("SetProbContinue", percent)
}

func (e *fakeEngine) Run(samples []int16) (bool, error) {
	if len(samples) != e.ChunkSamples {
		return false, fmt.Errorf("expected %d samples, received %d", e.ChunkSamples, len(samples))
	}
	if e.RunErr != nil {
		return false, e.RunErr
	}
	if e.Transform != nil {
		e.Transform(samples)
	}
	return e.IsVoice, nil
}

func (e *fakeEngine) Destroy() error {
	e.Destroyed++
	return e.DestroyErr
}
