// Package worker_test tests the NATS worker for the voice-clone service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceclone/internal/pipeline"
	"github.com/book-expert/voiceclone/internal/worker"
)

const (
	testSubject      = "test_subject"
	testReferenceKey = "reference.wav"
	testTextKey      = "test-text-key"
)

var errMockRun = errors.New("mock pipeline error")

// mockObjectStore is an in-memory implementation of the ObjectStore interface.
type mockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: map[string][]byte{
		testTextKey:      []byte("Hello world. How are you?"),
		testReferenceKey: []byte("reference audio"),
	}}
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, nats.ErrObjectNotFound
	}

	return data, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data

	return nil
}

func (m *mockObjectStore) UploadFile(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return m.Upload(ctx, key, data)
}

func (m *mockObjectStore) get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.objects[key]
}

// mockRunner records the job and writes fake audio to the output path.
type mockRunner struct {
	mu        sync.Mutex
	fail      bool
	skip      bool
	job       pipeline.Job
	text      []byte
	reference []byte
}

func (m *mockRunner) Run(_ context.Context, job pipeline.Job) (pipeline.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.job = job
	m.text, _ = os.ReadFile(job.InputTextPath)
	m.reference, _ = os.ReadFile(job.ReferenceAudioPath)

	if m.fail {
		return pipeline.Result{}, errMockRun
	}

	if m.skip {
		return pipeline.Result{Skipped: true}, nil
	}

	err := os.WriteFile(job.OutputPath, []byte("cloned audio"), 0o600)
	if err != nil {
		return pipeline.Result{}, err
	}

	return pipeline.Result{
		Sentences:  []string{"Hello world.", "How are you?"},
		OutputPath: job.OutputPath,
		Duration:   2 * time.Second,
	}, nil
}

func (m *mockRunner) lastJob() pipeline.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.job
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		server.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

type harness struct {
	store   *mockObjectStore
	runner  *mockRunner
	conn    *nats.Conn
	tempDir string
}

func startWorker(t *testing.T, runner *mockRunner) *harness {
	t.Helper()

	natsConnection := createTestNatsClient(t)
	store := newMockObjectStore()
	tempDir := t.TempDir()

	workerInstance, err := worker.NewNatsWorker(natsConnection, testSubject, store, runner, worker.Settings{
		ReferenceAudioKey: testReferenceKey,
		TempDir:           tempDir,
		JobTimeout:        5 * time.Second,
	}, createTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	// Wait for the subscription to reach the server before publishing.
	require.Eventually(t, func() bool {
		return natsConnection.NumSubscriptions() > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, natsConnection.Flush())

	return &harness{store: store, runner: runner, conn: natsConnection, tempDir: tempDir}
}

func newEvent(textKey string) *events.TextProcessedEvent {
	return &events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
		},
		TextKey:    textKey,
		PageNumber: 3,
		TotalPages: 10,
	}
}

func request(t *testing.T, conn *nats.Conn, event *events.TextProcessedEvent, timeout time.Duration) (*nats.Msg, error) {
	t.Helper()

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	return conn.Request(testSubject, eventData, timeout)
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{}
	h := startWorker(t, runner)

	event := newEvent(testTextKey)
	event.Voice = "melina"
	event.Temperature = 0.55

	replyMsg, err := request(t, h.conn, event, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(replyMsg.Data, &replyEvent))

	assert.Equal(t, event.Header.WorkflowID, replyEvent.Header.WorkflowID)
	assert.Equal(t, event.PageNumber, replyEvent.PageNumber)
	assert.Equal(t, event.TotalPages, replyEvent.TotalPages)
	assert.Equal(t, ".wav", filepath.Ext(replyEvent.AudioKey))
	assert.Equal(t, []byte("cloned audio"), h.store.get(replyEvent.AudioKey))

	job := runner.lastJob()
	assert.Equal(t, "melina", job.RVCModel)
	assert.InEpsilon(t, 0.55, job.Temperature, 0.001)
	assert.Equal(t, replyEvent.AudioKey, filepath.Base(job.OutputPath))
	assert.Equal(t, []byte("Hello world. How are you?"), runner.text)
	assert.Equal(t, []byte("reference audio"), runner.reference)

	leftovers, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "job directory should be removed")
}

func TestMessageHandler_SkippedJobRepliesWithoutAudio(t *testing.T) {
	t.Parallel()

	h := startWorker(t, &mockRunner{skip: true})

	replyMsg, err := request(t, h.conn, newEvent(testTextKey), 5*time.Second)
	require.NoError(t, err)

	var replyEvent events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(replyMsg.Data, &replyEvent))
	assert.Empty(t, replyEvent.AudioKey)
}

func TestMessageHandler_NoReplyOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *mockRunner
		event  func() *events.TextProcessedEvent
	}{
		{
			name:   "pipeline error",
			runner: &mockRunner{fail: true},
			event:  func() *events.TextProcessedEvent { return newEvent(testTextKey) },
		},
		{
			name:   "missing text object",
			runner: &mockRunner{},
			event:  func() *events.TextProcessedEvent { return newEvent("absent") },
		},
		{
			name:   "empty text key",
			runner: &mockRunner{},
			event:  func() *events.TextProcessedEvent { return newEvent("") },
		},
		{
			name:   "voice with path separator",
			runner: &mockRunner{},
			event: func() *events.TextProcessedEvent {
				event := newEvent(testTextKey)
				event.Voice = "../etc"

				return event
			},
		},
		{
			name:   "negative temperature",
			runner: &mockRunner{},
			event: func() *events.TextProcessedEvent {
				event := newEvent(testTextKey)
				event.Temperature = -1

				return event
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			h := startWorker(t, testCase.runner)

			_, err := request(t, h.conn, testCase.event(), 300*time.Millisecond)
			require.ErrorIs(t, err, nats.ErrTimeout)
		})
	}
}

func TestNewNatsWorker_RequiresReferenceKey(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, testSubject, newMockObjectStore(), &mockRunner{}, worker.Settings{}, nil)
	require.ErrorIs(t, err, worker.ErrReferenceKeyEmpty)
}
