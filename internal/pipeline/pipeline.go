// Package pipeline runs one voice-clone job: segment the text, synthesize each
// sentence in the reference speaker's voice, join the clips with fixed silence,
// write a WAV file and convert it in place with an RVC model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/segment"
	"github.com/book-expert/voiceclone/internal/tts/audio"
	"github.com/book-expert/voiceclone/internal/tts/text"
)

var (
	// ErrMissingReference is returned when a job names no reference clip.
	ErrMissingReference = errors.New("reference audio path is required")
	// ErrMissingOutput is returned when a job names no output path.
	ErrMissingOutput = errors.New("output path is required")
	// ErrNoConverter is returned when voice conversion is enabled without a converter.
	ErrNoConverter = errors.New("voice conversion enabled but no converter configured")
)

// Failure stages reported in wrapped errors.
const (
	StageRead       = "read"
	StageCondition  = "conditioning"
	StageSynthesize = "synthesize"
	StageConcat     = "concat"
	StageWrite      = "write"
	StageConvert    = "convert"
)

// ConverterFactory builds a converter for a named RVC model. It lets a job pick
// a voice other than the default one.
type ConverterFactory func(model string) (core.VoiceConverter, error)

// Options controls how a job is processed.
type Options struct {
	Segment    segment.Options
	Normalize  bool
	Silence    time.Duration
	Params     core.SynthesisParams
	RVCEnabled bool
	Converters ConverterFactory
}

// Job names the inputs and output of one run. Empty Language, RVCModel and a
// zero Temperature fall back to the pipeline's options.
type Job struct {
	InputTextPath      string
	ReferenceAudioPath string
	OutputPath         string
	Language           string
	RVCModel           string
	Temperature        float64
}

// Result summarizes a finished job.
type Result struct {
	Sentences  []string
	OutputPath string
	Samples    int
	Duration   time.Duration
	Skipped    bool
}

// StageError reports which step of a job failed. Sentence is the zero-based
// sentence index for synthesis failures and -1 otherwise.
type StageError struct {
	Stage    string
	Sentence int
	Err      error
}

func (e *StageError) Error() string {
	if e.Sentence >= 0 {
		return fmt.Sprintf("%s failed at sentence %d: %v", e.Stage, e.Sentence, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Sentence: -1, Err: err}
}

// Pipeline wires the collaborators of a job together.
type Pipeline struct {
	opts         Options
	synth        core.Synthesizer
	converter    core.VoiceConverter
	writer       core.AudioWriter
	preprocessor *text.Preprocessor
	log          *logger.Logger
}

// New creates a pipeline. converter may be nil when opts.RVCEnabled is false.
func New(
	opts Options,
	synth core.Synthesizer,
	converter core.VoiceConverter,
	writer core.AudioWriter,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		opts:         opts,
		synth:        synth,
		converter:    converter,
		writer:       writer,
		preprocessor: text.NewPreprocessor(),
		log:          log,
	}
}

// OptionsFromConfig derives pipeline options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Segment:   segment.Options{KeepTrailing: cfg.Segmenter.KeepTrailing},
		Normalize: cfg.Segmenter.Normalize,
		Silence:   cfg.Silence(),
		Params: core.SynthesisParams{
			Language:    cfg.XTTS.Language,
			Temperature: cfg.XTTS.Temperature,
			Speed:       cfg.XTTS.Speed,
		},
		RVCEnabled: cfg.RVCEnabled(),
	}
}

// Sentences reads path and returns the sentences a job over it would speak.
func (p *Pipeline) Sentences(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stageErr(StageRead, fmt.Errorf("failed to read input text %s: %w", path, err))
	}

	return p.split(string(data)), nil
}

func (p *Pipeline) split(raw string) []string {
	if p.opts.Normalize {
		raw = p.preprocessor.Normalize(raw)
	}

	return segment.SegmentWithOptions(raw, p.opts.Segment)
}

// Run executes job. A text with no sentences yields a skipped result and writes
// nothing.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	if strings.TrimSpace(job.ReferenceAudioPath) == "" {
		return Result{}, ErrMissingReference
	}

	if strings.TrimSpace(job.OutputPath) == "" {
		return Result{}, ErrMissingOutput
	}

	converter, err := p.converterFor(job)
	if err != nil {
		return Result{}, stageErr(StageConvert, err)
	}

	sentences, err := p.Sentences(job.InputTextPath)
	if err != nil {
		return Result{}, err
	}

	if len(sentences) == 0 {
		p.log.Warn("No sentences found in %s; nothing to synthesize", job.InputTextPath)

		return Result{Sentences: sentences, Skipped: true}, nil
	}

	p.log.Info("Segmented %s into %d sentences", job.InputTextPath, len(sentences))

	cond, err := p.synth.ComputeConditioning(ctx, job.ReferenceAudioPath)
	if err != nil {
		return Result{}, stageErr(StageCondition, err)
	}

	combined, err := p.synthesizeAll(ctx, sentences, p.params(job), cond)
	if err != nil {
		return Result{}, err
	}

	writeErr := p.writer.Write(job.OutputPath, combined)
	if writeErr != nil {
		return Result{}, stageErr(StageWrite, writeErr)
	}

	p.logWritten(job.OutputPath, combined)

	if converter != nil {
		convertErr := converter.Convert(ctx, job.OutputPath, job.OutputPath)
		if convertErr != nil {
			return Result{}, stageErr(StageConvert, convertErr)
		}
	}

	return Result{
		Sentences:  sentences,
		OutputPath: job.OutputPath,
		Samples:    combined.Len(),
		Duration:   combined.Duration(),
	}, nil
}

func (p *Pipeline) synthesizeAll(
	ctx context.Context,
	sentences []string,
	params core.SynthesisParams,
	cond core.Conditioning,
) (audio.Waveform, error) {
	parts := make([]audio.Waveform, 0, len(sentences)*2)

	for index, sentence := range sentences {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return audio.Waveform{}, &StageError{Stage: StageSynthesize, Sentence: index, Err: ctxErr}
		}

		p.log.Info("Sentence %d/%d: %s", index+1, len(sentences), sentence)

		waveform, err := p.synth.Synthesize(ctx, sentence, params, cond)
		if err != nil {
			return audio.Waveform{}, &StageError{Stage: StageSynthesize, Sentence: index, Err: err}
		}

		parts = append(parts, waveform, audio.Silence(waveform.SampleRate, p.opts.Silence))
	}

	combined, err := audio.Concat(parts...)
	if err != nil {
		return audio.Waveform{}, stageErr(StageConcat, err)
	}

	return combined, nil
}

func (p *Pipeline) params(job Job) core.SynthesisParams {
	params := p.opts.Params

	if job.Language != "" {
		params.Language = job.Language
	}

	if job.Temperature > 0 {
		params.Temperature = job.Temperature
	}

	return params
}

func (p *Pipeline) converterFor(job Job) (core.VoiceConverter, error) {
	if !p.opts.RVCEnabled {
		return nil, nil
	}

	if job.RVCModel != "" && p.opts.Converters != nil {
		converter, err := p.opts.Converters(job.RVCModel)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare RVC model %q: %w", job.RVCModel, err)
		}

		return converter, nil
	}

	if p.converter == nil {
		return nil, ErrNoConverter
	}

	return p.converter, nil
}

func (p *Pipeline) logWritten(path string, waveform audio.Waveform) {
	info, err := os.Stat(path)
	if err != nil {
		p.log.Info("Wrote %s of audio to %s", waveform.Duration(), path)

		return
	}

	p.log.Info("Wrote %s of audio to %s (%s)", waveform.Duration(), path, humanize.Bytes(uint64(info.Size())))
}
