// main package for the voiceclone-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/objectstore"
	"github.com/book-expert/voiceclone/internal/pipeline"
	"github.com/book-expert/voiceclone/internal/rvc"
	"github.com/book-expert/voiceclone/internal/tts"
	"github.com/book-expert/voiceclone/internal/tts/audio"
	"github.com/book-expert/voiceclone/internal/worker"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// buildPipeline prepares XTTS and the default RVC model. Jobs naming another
// voice get a converter built on demand.
func buildPipeline(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pipeline.Pipeline, error) {
	synth := tts.NewXTTSSynthesizer(cfg.XTTS, log)

	loadErr := synth.Load(ctx)
	if loadErr != nil {
		return nil, loadErr
	}

	opts := pipeline.OptionsFromConfig(cfg)

	var converter core.VoiceConverter

	if cfg.RVCEnabled() {
		rvcConverter, err := rvc.NewFromConfig(cfg.RVC, "", log)
		if err != nil {
			return nil, err
		}

		converter = rvcConverter
		opts.Converters = func(model string) (core.VoiceConverter, error) {
			return rvc.NewFromConfig(cfg.RVC, model, log)
		}
	}

	return pipeline.New(opts, synth, converter, audio.NewWAVWriter(cfg.AudioFormat()), log), nil
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.ObjectStoreBucket)
	if err != nil {
		return err
	}

	voiceClone, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	workerInstance, err := worker.NewNatsWorker(natsConnection, cfg.NATS.JobsSubject, store, voiceClone, worker.Settings{
		ReferenceAudioKey: cfg.NATS.ReferenceAudioKey,
		TempDir:           cfg.Paths.TempDir,
	}, log)
	if err != nil {
		return err
	}

	log.System("Voiceclone-Service successfully initialized. Listening for jobs on subject: %s", cfg.NATS.JobsSubject)

	return workerInstance.Run(ctx)
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "voiceclone-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "voiceclone-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := serve(ctx, cfg, finalLog)
	if serveErr != nil {
		finalLog.Error("Service stopped with error: %v", serveErr)

		return serveErr
	}

	finalLog.System("Voiceclone-Service shut down cleanly.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
