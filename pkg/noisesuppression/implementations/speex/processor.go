package speex

import (
	"context"
	"fmt"
	"runtime"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/speexnoise/pkg/audio"
	"github.com/xaionaro-go/speexnoise/pkg/noisesuppression"
)

// ChunkProcessor applies the SpeexDSP preprocessor to fixed-size chunks
// of 16kHz mono S16LE audio.
//
// The engine adapts its noise and gain estimates across calls, so chunks
// must be given in their temporal order. A ChunkProcessor is not safe
// for concurrent use; distinct instances are independent.
type ChunkProcessor struct {
	config  Config
	engine  Engine
	samples []int16
}

var _ noisesuppression.NoiseSuppression = (*ChunkProcessor)(nil)

// New creates a ChunkProcessor backed by DefaultEngineFactory.
func New(
	ctx context.Context,
	cfg Config,
) (*ChunkProcessor, error) {
	return NewWithEngineFactory(ctx, cfg, DefaultEngineFactory)
}

// NewFromLevels is New with the numeric convention of ConfigFromLevels.
func NewFromLevels(
	ctx context.Context,
	chunkSamples int,
	autoGain float32,
	noiseSuppression int,
) (*ChunkProcessor, error) {
	return New(ctx, ConfigFromLevels(chunkSamples, autoGain, noiseSuppression))
}

func NewWithEngineFactory(
	ctx context.Context,
	cfg Config,
	newEngine EngineFactory,
) (_ret *ChunkProcessor, _err error) {
	logger.Tracef(ctx, "NewWithEngineFactory(%s)", cfg)
	defer func() { logger.Tracef(ctx, "/NewWithEngineFactory(%s): %v", cfg, _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if newEngine == nil {
		return nil, fmt.Errorf("%w: no engine factory is given", ErrEngineInitialization)
	}

	engine, err := newEngine(cfg.ChunkSamples, SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineInitialization, err)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: the factory returned no engine", ErrEngineInitialization)
	}

	if err := configureEngine(ctx, engine, cfg); err != nil {
		var mErr *multierror.Error
		mErr = multierror.Append(mErr, fmt.Errorf("%w: %w", ErrEngineInitialization, err))
		if err := engine.Destroy(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to destroy the engine: %w", err))
		}
		return nil, mErr.ErrorOrNil()
	}

	p := &ChunkProcessor{
		config:  cfg,
		engine:  engine,
		samples: make([]int16, cfg.ChunkSamples),
	}
	runtime.SetFinalizer(p, func(p *ChunkProcessor) {
		_ = p.Close()
	})
	return p, nil
}

func configureEngine(
	ctx context.Context,
	engine Engine,
	cfg Config,
) error {
	nsLevel, nsEnabled := cfg.NoiseSuppression.Get()
	logger.Debugf(ctx, "denoise: %v", cfg.NoiseSuppression)
	if err := engine.SetDenoise(nsEnabled); err != nil {
		return fmt.Errorf("unable to set the denoise flag to %v: %w", nsEnabled, err)
	}
	if nsEnabled {
		if err := engine.SetNoiseSuppress(nsLevel); err != nil {
			return fmt.Errorf("unable to set the noise suppression level to %d: %w", nsLevel, err)
		}
	}

	agcLevel, agcEnabled := cfg.AutoGain.Get()
	logger.Debugf(ctx, "AGC: %v", cfg.AutoGain)
	if err := engine.SetAGC(agcEnabled); err != nil {
		return fmt.Errorf("unable to set the AGC flag to %v: %w", agcEnabled, err)
	}
	if agcEnabled {
		if err := engine.SetAGCLevel(agcLevel); err != nil {
			return fmt.Errorf("unable to set the AGC level to %v: %w", agcLevel, err)
		}
	}

	vadProbs, vadEnabled := cfg.VoiceDetection.Get()
	logger.Debugf(ctx, "VAD: %v", cfg.VoiceDetection)
	if err := engine.SetVAD(vadEnabled); err != nil {
		return fmt.Errorf("unable to set the VAD flag to %v: %w", vadEnabled, err)
	}
	if vadEnabled {
		if err := engine.SetProbStart(vadProbs.Start); err != nil {
			return fmt.Errorf("unable to set the VAD start probability to %d: %w", vadProbs.Start, err)
		}
		if err := engine.SetProbContinue(vadProbs.Continue); err != nil {
			return fmt.Errorf("unable to set the VAD continue probability to %d: %w", vadProbs.Continue, err)
		}
	}

	return nil
}

func (p *ChunkProcessor) Config() Config {
	return p.config
}

func (p *ChunkProcessor) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  PCMFormat,
		SampleRate: SampleRate,
	}, nil
}

func (p *ChunkProcessor) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

func (p *ChunkProcessor) ChunkSize() uint {
	return uint(p.config.ChunkBytes())
}

// ProcessChunk processes exactly one chunk and returns the result
// in a newly allocated slice.
func (p *ChunkProcessor) ProcessChunk(
	ctx context.Context,
	input []byte,
) (_ret []byte, _err error) {
	logger.Tracef(ctx, "ProcessChunk, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/ProcessChunk, len:%d: %v", len(input), _err) }()

	if err := p.checkChunk(input); err != nil {
		return nil, err
	}

	output := make([]byte, len(input))
	if _, err := p.processChunk(input, output); err != nil {
		return nil, err
	}
	return output, nil
}

func (p *ChunkProcessor) checkChunk(input []byte) error {
	if p.engine == nil {
		return ErrClosed
	}
	if len(input) != p.config.ChunkBytes() {
		return &SizeMismatchError{
			Actual:   len(input),
			Expected: p.config.ChunkBytes(),
		}
	}
	return nil
}

func (p *ChunkProcessor) processChunk(input, output []byte) (bool, error) {
	if err := p.checkChunk(input); err != nil {
		return false, err
	}

	if err := audio.DecodeS16LE(p.samples, input); err != nil {
		return false, fmt.Errorf("unable to decode the input: %w", err)
	}
	isVoice, err := p.engine.Run(p.samples)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEngineRuntime, err)
	}
	if err := audio.EncodeS16LE(output, p.samples); err != nil {
		return false, fmt.Errorf("unable to encode the output: %w", err)
	}
	return isVoice, nil
}

// SuppressNoise processes input chunk by chunk in order. The returned
// confidence is 1 if any chunk was classified as voice and 0 otherwise.
func (p *ChunkProcessor) SuppressNoise(
	ctx context.Context,
	input []byte,
	outputVoice []byte,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v", len(input), _err) }()

	if p.engine == nil {
		return 0, ErrClosed
	}
	chunkSize := p.config.ChunkBytes()
	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input) == 0 || len(input)%chunkSize != 0 {
		return 0, fmt.Errorf("the size of the input is not a positive multiple of ChunkSize: %d %% %d != 0", len(input), chunkSize)
	}

	var confidence float64
	for offset := 0; offset < len(input); offset += chunkSize {
		isVoice, err := p.processChunk(
			input[offset:offset+chunkSize],
			outputVoice[offset:offset+chunkSize],
		)
		if err != nil {
			return confidence, fmt.Errorf("unable to process the chunk at offset %d: %w", offset, err)
		}
		if isVoice {
			confidence = 1
		}
	}
	return confidence, nil
}

// Close releases the engine. Calling it more than once is a no-op.
func (p *ChunkProcessor) Close() error {
	if p.engine == nil {
		return nil
	}
	engine := p.engine
	p.engine = nil
	p.samples = nil
	runtime.SetFinalizer(p, nil)

	if err := engine.Destroy(); err != nil {
		return fmt.Errorf("unable to destroy the engine: %w", err)
	}
	return nil
}
