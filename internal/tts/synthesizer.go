package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/tts/audio"
)

// HealthCheckTimeout bounds the readiness probe run before model loading.
const HealthCheckTimeout = 10 * time.Second

const (
	logFmtLoadingModel     = "Loading XTTS checkpoint %s on %s"
	logFmtSkippingLoad     = "No XTTS checkpoint configured; using the model already loaded on %s"
	logFmtConditioningDone = "Computed speaker conditioning from %d reference clip(s)"
	logFmtSentenceAudio    = "Synthesized %d chars into %s of audio (%s)"
)

// XTTSSynthesizer implements core.Synthesizer on top of an XTTS HTTP server.
type XTTSSynthesizer struct {
	client *HTTPClient
	model  LoadModelRequest
	log    *logger.Logger
}

// NewXTTSSynthesizer builds a synthesizer from the [xtts] configuration section.
func NewXTTSSynthesizer(cfg config.XTTSConfig, log *logger.Logger) *XTTSSynthesizer {
	client := NewHTTPClient(cfg.ServiceURL, cfg.Timeout(), cfg.RequestsPerSecond)

	return NewXTTSSynthesizerWithClient(client, LoadModelRequest{
		ConfigPath:     cfg.ConfigPath,
		CheckpointPath: cfg.CheckpointPath,
		VocabPath:      cfg.VocabPath,
		Device:         cfg.Device,
		UseDeepspeed:   cfg.UseDeepspeed,
	}, log)
}

// NewXTTSSynthesizerWithClient creates a synthesizer around an existing client.
func NewXTTSSynthesizerWithClient(client *HTTPClient, model LoadModelRequest, log *logger.Logger) *XTTSSynthesizer {
	return &XTTSSynthesizer{
		client: client,
		model:  model,
		log:    log,
	}
}

// Load probes the server and loads the configured checkpoint. When no checkpoint
// is configured the server's current model is used.
func (s *XTTSSynthesizer) Load(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	healthErr := s.client.HealthCheck(healthCtx)
	if healthErr != nil {
		return fmt.Errorf("XTTS service health check failed: %w", healthErr)
	}

	if s.model.CheckpointPath == "" {
		s.log.Info(logFmtSkippingLoad, s.client.baseURL)

		return nil
	}

	s.log.Info(logFmtLoadingModel, s.model.CheckpointPath, s.model.Device)

	loadErr := s.client.LoadModel(ctx, s.model)
	if loadErr != nil {
		return fmt.Errorf("failed to load XTTS model: %w", loadErr)
	}

	return nil
}

// ComputeConditioning derives speaker latents from the reference clips.
func (s *XTTSSynthesizer) ComputeConditioning(
	ctx context.Context,
	referenceAudioPaths ...string,
) (core.Conditioning, error) {
	cond, err := s.client.ComputeConditioning(ctx, ConditioningRequest{SpeakerRefPaths: referenceAudioPaths})
	if err != nil {
		return core.Conditioning{}, fmt.Errorf("failed to compute speaker conditioning: %w", err)
	}

	s.log.Info(logFmtConditioningDone, len(referenceAudioPaths))

	return cond, nil
}

// Synthesize renders one sentence and decodes the returned WAV.
func (s *XTTSSynthesizer) Synthesize(
	ctx context.Context,
	text string,
	params core.SynthesisParams,
	cond core.Conditioning,
) (audio.Waveform, error) {
	audioData, err := s.client.GenerateSpeech(ctx, SpeechRequest{
		Text:         text,
		Language:     params.Language,
		Temperature:  params.Temperature,
		Speed:        params.Speed,
		Conditioning: cond,
	})
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("failed to generate speech: %w", err)
	}

	waveform, err := audio.DecodeWAV(audioData)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("failed to decode XTTS audio: %w", err)
	}

	s.log.Info(logFmtSentenceAudio, len(text), waveform.Duration(), humanize.Bytes(uint64(len(audioData))))

	return waveform, nil
}
