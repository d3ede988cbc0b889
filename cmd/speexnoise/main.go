package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speexnoise/pkg/audio"
	"github.com/xaionaro-go/speexnoise/pkg/noisesuppression/implementations/speex"
	"github.com/xaionaro-go/speexnoise/pkg/pcmfile"
	"github.com/xaionaro-go/speexnoise/pkg/vad"
	vadnoisesuppression "github.com/xaionaro-go/speexnoise/pkg/vad/implementations/noisesuppression"
	"gopkg.in/yaml.v3"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "path to a YAML file with the preprocessor configuration; overrides the level flags")
	chunkSamples := pflag.Int("chunk-samples", 160, "the amount of samples per chunk")
	autoGain := pflag.Float32("auto-gain", 0, "AGC target level; a value <= 0 disables AGC")
	noiseSuppression := pflag.Int("noise-suppression", 0, "noise attenuation in dB; 0 disables denoising")
	inputFormatFlag := pflag.String("input-format", "", "raw, wav or ogg; guessed by the extension if empty")
	outputFormatFlag := pflag.String("output-format", "", "raw or wav; guessed by the extension if empty")
	vadThreshold := pflag.Float64("vad-threshold", 0, "if positive, enable VAD and report the first voice position")
	vadMinDuration := pflag.Duration("vad-min-duration", 100*time.Millisecond, "how long the voice should last to be reported")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}
	inputPath, outputPath := pflag.Arg(0), pflag.Arg(1)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	cfg := speex.ConfigFromLevels(*chunkSamples, *autoGain, *noiseSuppression)
	if *configPath != "" {
		var err error
		cfg, err = readConfig(*configPath)
		assertNoError(err)
	}
	if *vadThreshold > 0 && !cfg.VoiceDetection.IsEnabled() {
		cfg.VoiceDetection = speex.Enabled(speex.DefaultVADProbabilities)
	}
	logger.Debugf(ctx, "config: %s", cfg)

	inputFormat := formatFromFlag(*inputFormatFlag, inputPath)
	outputFormat := formatFromFlag(*outputFormatFlag, outputPath)

	input, err := pcmfile.Read(inputPath, inputFormat, speex.SampleRate)
	assertNoError(err)
	if input.SampleRate != speex.SampleRate || input.Channels != 1 {
		panic(fmt.Errorf("expected %dHz mono audio, but '%s' is %dHz with %d channels", speex.SampleRate, inputPath, input.SampleRate, input.Channels))
	}

	processor, err := speex.New(ctx, cfg)
	assertNoError(err)
	defer processor.Close()

	chunkSize := int(processor.ChunkSize())
	pcm := input.PCM
	tailSize := len(pcm) % chunkSize
	if tailSize != 0 || len(pcm) == 0 {
		padding := chunkSize - tailSize
		logger.Infof(ctx, "padding the input with %d bytes of silence to a whole chunk", padding)
		pcm = append(pcm, make([]byte, padding)...)
	}

	output := make([]byte, len(pcm))
	_, err = processor.SuppressNoise(ctx, pcm, output)
	assertNoError(err)
	logger.Infof(ctx, "mean magnitude: input %.1f, output %.1f", audio.MeanAbsS16LE(pcm), audio.MeanAbsS16LE(output))

	if *vadThreshold > 0 {
		reportVoice(ctx, cfg, pcm, *vadThreshold, *vadMinDuration)
	}

	written, err := pcmfile.Write(outputPath, outputFormat, &pcmfile.Data{
		PCM:        output,
		SampleRate: speex.SampleRate,
		Channels:   1,
	})
	assertNoError(err)
	logger.Infof(ctx, "written %d bytes to '%s'", written, outputPath)
}

func reportVoice(
	ctx context.Context,
	cfg speex.Config,
	pcm []byte,
	threshold float64,
	minDuration time.Duration,
) {
	// a separate processor, so that VAD starts with fresh estimates
	processor, err := speex.New(ctx, cfg)
	assertNoError(err)
	defer processor.Close()

	detector, err := vadnoisesuppression.NewVAD(ctx, processor, 20*time.Millisecond)
	assertNoError(err)

	confidence, pos, err := detector.FindNextVoice(ctx, pcm, threshold, minDuration)
	assertNoError(err)
	if !vad.Found(pos) {
		logger.Infof(ctx, "no voice found (max confidence: %.2f)", confidence)
		return
	}
	logger.Infof(ctx, "voice found at %v", pos)
}

func readConfig(path string) (speex.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return speex.Config{}, fmt.Errorf("unable to read the config '%s': %w", path, err)
	}

	var cfg speex.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return speex.Config{}, fmt.Errorf("unable to parse the config '%s': %w", path, err)
	}
	return cfg, nil
}

func formatFromFlag(flagValue string, path string) pcmfile.Format {
	if flagValue == "" {
		return pcmfile.FormatFromPath(path)
	}
	format, err := pcmfile.ParseFormat(flagValue)
	assertNoError(err)
	return format
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
