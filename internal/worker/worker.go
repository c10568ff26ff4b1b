// Package worker provides a NATS worker that runs voice-clone jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/pipeline"
)

// DefaultJobTimeout bounds one job when Settings.JobTimeout is zero.
const DefaultJobTimeout = 30 * time.Minute

const (
	inputTextFile      = "input.txt"
	referenceAudioFile = "reference.wav"
	audioKeySuffix     = ".wav"
	jobDirPermissions  = 0o750
	jobFilePermissions = 0o600
)

var (
	// ErrTextKeyEmpty indicates that the event names no text object.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrReferenceKeyEmpty indicates that the worker has no reference audio object configured.
	ErrReferenceKeyEmpty = errors.New("reference audio key cannot be empty")
	// ErrUnsupportedVoice indicates that the requested voice cannot name a model directory.
	ErrUnsupportedVoice = errors.New("unsupported voice")
	// ErrTemperatureRange indicates that the Temperature parameter is negative.
	ErrTemperatureRange = errors.New("temperature must be >= 0.0")
)

// JobRunner executes one voice-clone job on local files.
type JobRunner interface {
	Run(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// Settings configures how the worker stages jobs.
type Settings struct {
	// ReferenceAudioKey is the object holding the speaker clip used for every job.
	ReferenceAudioKey string
	// TempDir is where per-job working directories are created.
	TempDir    string
	JobTimeout time.Duration
}

// NatsWorker listens for voice-clone jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	runner         JobRunner
	settings       Settings
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	runner JobRunner,
	settings Settings,
	log *logger.Logger,
) (*NatsWorker, error) {
	if settings.ReferenceAudioKey == "" {
		return nil, ErrReferenceKeyEmpty
	}

	if settings.JobTimeout <= 0 {
		settings.JobTimeout = DefaultJobTimeout
	}

	if settings.TempDir == "" {
		settings.TempDir = os.TempDir()
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		runner:         runner,
		settings:       settings,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for voice-clone jobs on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.settings.JobTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	audioKey, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process voice-clone job for workflow %s: %v", event.Header.WorkflowID, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processJob stages the inputs in a private directory, runs the pipeline and
// uploads the result. It returns an empty key when the text held no sentences.
func (w *NatsWorker) processJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	jobDir := filepath.Join(w.settings.TempDir, "job-"+uuid.NewString())

	err := os.MkdirAll(jobDir, jobDirPermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	defer w.removeJobDir(jobDir)

	textPath := filepath.Join(jobDir, inputTextFile)

	err = w.fetch(ctx, event.TextKey, textPath)
	if err != nil {
		return "", err
	}

	referencePath := filepath.Join(jobDir, referenceAudioFile)

	err = w.fetch(ctx, w.settings.ReferenceAudioKey, referencePath)
	if err != nil {
		return "", err
	}

	audioKey := uuid.NewString() + audioKeySuffix
	outputPath := filepath.Join(jobDir, audioKey)

	result, err := w.runner.Run(ctx, pipeline.Job{
		InputTextPath:      textPath,
		ReferenceAudioPath: referencePath,
		OutputPath:         outputPath,
		RVCModel:           event.Voice,
		Temperature:        event.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run voice-clone pipeline: %w", err)
	}

	if result.Skipped {
		w.log.Warn("Text object %s holds no sentences; replying without audio", event.TextKey)

		return "", nil
	}

	err = w.store.UploadFile(ctx, audioKey, outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	w.log.Info(
		"Workflow %s: %d sentences, %s of audio uploaded as %s",
		event.Header.WorkflowID, len(result.Sentences), result.Duration, audioKey,
	)

	return audioKey, nil
}

func (w *NatsWorker) fetch(ctx context.Context, key, path string) error {
	data, err := w.store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to download object '%s': %w", key, err)
	}

	err = os.WriteFile(path, data, jobFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to stage object '%s': %w", key, err)
	}

	return nil
}

func (w *NatsWorker) removeJobDir(dir string) {
	err := os.RemoveAll(dir)
	if err != nil {
		w.log.Warn("Failed to remove job directory %s: %v", dir, err)
	}
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	validationErr := validateEvent(&event)
	if validationErr != nil {
		return nil, validationErr
	}

	return &event, nil
}

// validateEvent rejects events whose fields cannot be passed to the pipeline.
// Voice names an RVC model directory, so it must be a single path element.
func validateEvent(event *events.TextProcessedEvent) error {
	if strings.TrimSpace(event.TextKey) == "" {
		return ErrTextKeyEmpty
	}

	if event.Voice != "" {
		if event.Voice != filepath.Base(event.Voice) || strings.HasPrefix(event.Voice, ".") {
			return fmt.Errorf("%w: '%s'", ErrUnsupportedVoice, event.Voice)
		}
	}

	if event.Temperature < 0.0 {
		return fmt.Errorf("%w: got %f", ErrTemperatureRange, event.Temperature)
	}

	return nil
}
