package speex

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speexnoise/pkg/audio"
)

func newTestProcessor(t *testing.T, cfg Config) (*ChunkProcessor, *fakeEngineFactory) {
	factory := &fakeEngineFactory{}
	p, err := NewWithEngineFactory(context.Background(), cfg, factory.New)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, factory
}

func rampChunk(samples int) []byte {
	data := make([]int16, samples)
	for idx := range data {
		data[idx] = int16(idx*37 - 1000)
	}
	raw := make([]byte, samples*2)
	if err := audio.EncodeS16LE(raw, data); err != nil {
		panic(err)
	}
	return raw
}

func TestNewInvalidConfiguration(t *testing.T) {
	for name, cfg := range map[string]Config{
		"zero_chunk":     {ChunkSamples: 0},
		"negative_chunk": {ChunkSamples: -160},
		"chunk_over_int": {ChunkSamples: math.MaxInt32 + 1},
		"agc_zero_level": {ChunkSamples: 160, AutoGain: Enabled[float32](0)},
		"agc_negative":   {ChunkSamples: 160, AutoGain: Enabled[float32](-1)},
		"ns_zero_level":  {ChunkSamples: 160, NoiseSuppression: Enabled(0)},
		"vad_over_100":   {ChunkSamples: 160, VoiceDetection: Enabled(VADProbabilities{Start: 101, Continue: 20})},
		"vad_negative":   {ChunkSamples: 160, VoiceDetection: Enabled(VADProbabilities{Start: 35, Continue: -1})},
	} {
		t.Run(name, func(t *testing.T) {
			factory := &fakeEngineFactory{}
			p, err := NewWithEngineFactory(context.Background(), cfg, factory.New)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
			require.Nil(t, p)
			require.Empty(t, factory.Engines, "no engine must be allocated")
		})
	}
}

func TestNewEngineInitializationError(t *testing.T) {
	ctx := context.Background()

	t.Run("factory_error", func(t *testing.T) {
		factory := &fakeEngineFactory{Err: errors.New("out of memory")}
		_, err := NewWithEngineFactory(ctx, ConfigFromLevels(160, 0, 0), factory.New)
		require.ErrorIs(t, err, ErrEngineInitialization)
		require.Contains(t, err.Error(), "out of memory")
	})

	t.Run("nil_factory", func(t *testing.T) {
		_, err := NewWithEngineFactory(ctx, ConfigFromLevels(160, 0, 0), nil)
		require.ErrorIs(t, err, ErrEngineInitialization)
	})

	t.Run("control_error_releases_engine", func(t *testing.T) {
		factory := &fakeEngineFactory{
			Prepare: func(e *fakeEngine) { e.FailOn = "SetAGCLevel" },
		}
		_, err := NewWithEngineFactory(ctx, ConfigFromLevels(160, 8000, 0), factory.New)
		require.ErrorIs(t, err, ErrEngineInitialization)
		require.Len(t, factory.Engines, 1)
		require.Equal(t, 1, factory.Engines[0].Destroyed)
	})

	t.Run("control_and_destroy_errors", func(t *testing.T) {
		factory := &fakeEngineFactory{
			Prepare: func(e *fakeEngine) {
				e.FailOn = "SetDenoise"
				e.DestroyErr = errors.New("destroy failed")
			},
		}
		_, err := NewWithEngineFactory(ctx, ConfigFromLevels(160, 0, 0), factory.New)
		require.ErrorIs(t, err, ErrEngineInitialization)
		require.Contains(t, err.Error(), "destroy failed")
	})
}

func TestNewEngineControls(t *testing.T) {
	for name, tc := range map[string]struct {
		Config        Config
		ExpectedCalls []string
	}{
		"all_disabled": {
			Config:        ConfigFromLevels(160, 0, 0),
			ExpectedCalls: []string{"SetDenoise(false)", "SetAGC(false)", "SetVAD(false)"},
		},
		"denoise_only": {
			Config:        ConfigFromLevels(160, -5, 15),
			ExpectedCalls: []string{"SetDenoise(true)", "SetNoiseSuppress(15)", "SetAGC(false)", "SetVAD(false)"},
		},
		"agc_only": {
			Config:        ConfigFromLevels(320, 8000, 0),
			ExpectedCalls: []string{"SetDenoise(false)", "SetAGC(true)", "SetAGCLevel(8000)", "SetVAD(false)"},
		},
		"negative_noise_suppression_is_passed_as_is": {
			Config:        ConfigFromLevels(160, 0, -25),
			ExpectedCalls: []string{"SetDenoise(true)", "SetNoiseSuppress(-25)", "SetAGC(false)", "SetVAD(false)"},
		},
		"everything": {
			Config: Config{
				ChunkSamples:     160,
				AutoGain:         Enabled[float32](24000),
				NoiseSuppression: Enabled(-30),
				VoiceDetection:   Enabled(VADProbabilities{Start: 80, Continue: 65}),
			},
			ExpectedCalls: []string{
				"SetDenoise(true)", "SetNoiseSuppress(-30)",
				"SetAGC(true)", "SetAGCLevel(24000)",
				"SetVAD(true)", "SetProbStart(80)", "SetProbContinue(65)",
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			p, factory := newTestProcessor(t, tc.Config)
			require.Len(t, factory.Engines, 1)
			e := factory.Engines[0]
			require.Equal(t, tc.Config.ChunkSamples, e.ChunkSamples)
			require.Equal(t, SampleRate, e.SampleRate)
			require.Equal(t, tc.ExpectedCalls, e.Calls)
			require.Equal(t, uint(tc.Config.ChunkSamples*2), p.ChunkSize())
			require.Equal(t, tc.Config, p.Config())
		})
	}
}

func TestProcessChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("pass_through", func(t *testing.T) {
		p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		input := rampChunk(160)
		output, err := p.ProcessChunk(ctx, input)
		require.NoError(t, err)
		require.Len(t, output, 320)
		require.Equal(t, input, output, spew.Sdump(output))
	})

	t.Run("output_is_owned_by_the_caller", func(t *testing.T) {
		p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		input := rampChunk(160)
		output0, err := p.ProcessChunk(ctx, input)
		require.NoError(t, err)
		output0[0] = 0x55
		input[1] = 0x66

		output1, err := p.ProcessChunk(ctx, rampChunk(160))
		require.NoError(t, err)
		require.Equal(t, rampChunk(160), output1)
		require.Equal(t, byte(0x55), output0[0])
	})

	t.Run("engine_transform_is_applied", func(t *testing.T) {
		factory := &fakeEngineFactory{
			Prepare: func(e *fakeEngine) {
				e.Transform = func(samples []int16) {
					for idx := range samples {
						samples[idx] /= 2
					}
				}
			},
		}
		p, err := NewWithEngineFactory(ctx, ConfigFromLevels(4, 0, 15), factory.New)
		require.NoError(t, err)
		defer p.Close()

		// 100, -200, 300, 0x7fff
		output, err := p.ProcessChunk(ctx, []byte{100, 0, 0x38, 0xff, 0x2c, 0x01, 0xff, 0x7f})
		require.NoError(t, err)
		require.Equal(t, []byte{50, 0, 0x9c, 0xff, 0x96, 0x00, 0xff, 0x3f}, output)
	})

	t.Run("size_mismatch", func(t *testing.T) {
		p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		for _, size := range []int{0, 1, 319, 321, 640} {
			output, err := p.ProcessChunk(ctx, make([]byte, size))
			require.Nil(t, output)
			var sizeErr *SizeMismatchError
			require.ErrorAs(t, err, &sizeErr)
			assert.Equal(t, size, sizeErr.Actual)
			assert.Equal(t, 320, sizeErr.Expected)
		}
	})

	t.Run("runtime_error_keeps_the_processor_usable", func(t *testing.T) {
		p, factory := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		e := factory.Engines[0]

		e.RunErr = errors.New("internal failure")
		output, err := p.ProcessChunk(ctx, rampChunk(160))
		require.ErrorIs(t, err, ErrEngineRuntime)
		require.Nil(t, output)

		e.RunErr = nil
		output, err = p.ProcessChunk(ctx, rampChunk(160))
		require.NoError(t, err)
		require.Equal(t, rampChunk(160), output)
	})
}

func TestSuppressNoise(t *testing.T) {
	ctx := context.Background()

	t.Run("multiple_chunks", func(t *testing.T) {
		p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		input := append(rampChunk(160), rampChunk(160)...)
		output := make([]byte, len(input))
		confidence, err := p.SuppressNoise(ctx, input, output)
		require.NoError(t, err)
		require.Equal(t, 1.0, confidence)
		require.Equal(t, input, output)
	})

	t.Run("no_voice", func(t *testing.T) {
		p, factory := newTestProcessor(t, Config{
			ChunkSamples:   160,
			VoiceDetection: Enabled(DefaultVADProbabilities),
		})
		factory.Engines[0].IsVoice = false
		output := make([]byte, 960)
		confidence, err := p.SuppressNoise(ctx, make([]byte, 960), output)
		require.NoError(t, err)
		require.Zero(t, confidence)
	})

	t.Run("invalid_sizes", func(t *testing.T) {
		p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
		_, err := p.SuppressNoise(ctx, nil, nil)
		require.Error(t, err)
		_, err = p.SuppressNoise(ctx, make([]byte, 480), make([]byte, 480))
		require.Error(t, err)
		_, err = p.SuppressNoise(ctx, make([]byte, 640), make([]byte, 320))
		require.Error(t, err)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	factory := &fakeEngineFactory{}
	p, err := NewWithEngineFactory(ctx, ConfigFromLevels(160, 0, 0), factory.New)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, factory.Engines[0].Destroyed)

	_, err = p.ProcessChunk(ctx, make([]byte, 320))
	require.ErrorIs(t, err, ErrClosed)
	_, err = p.SuppressNoise(ctx, make([]byte, 320), make([]byte, 320))
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseDestroyError(t *testing.T) {
	factory := &fakeEngineFactory{
		Prepare: func(e *fakeEngine) { e.DestroyErr = errors.New("boom") },
	}
	p, err := NewWithEngineFactory(context.Background(), ConfigFromLevels(160, 0, 0), factory.New)
	require.NoError(t, err)
	require.Error(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, factory.Engines[0].Destroyed)
}

func TestEncodingAndChannels(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProcessor(t, ConfigFromLevels(160, 0, 0))

	enc, err := p.Encoding(ctx)
	require.NoError(t, err)
	require.Equal(t, audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 16000}, enc)

	ch, err := p.Channels(ctx)
	require.NoError(t, err)
	require.Equal(t, audio.Channel(1), ch)
}

func TestIndependentProcessors(t *testing.T) {
	a, factoryA := newTestProcessor(t, ConfigFromLevels(160, 0, 0))
	b, factoryB := newTestProcessor(t, ConfigFromLevels(80, 0, 0))
	require.NotSame(t, factoryA.Engines[0], factoryB.Engines[0])

	require.NoError(t, a.Close())
	output, err := b.ProcessChunk(context.Background(), rampChunk(80))
	require.NoError(t, err)
	require.Len(t, output, 160)
}
