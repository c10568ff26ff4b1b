package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceclone/internal/config"
	"github.com/book-expert/voiceclone/internal/core"
	"github.com/book-expert/voiceclone/internal/tts"
	"github.com/book-expert/voiceclone/internal/tts/audio"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = lg.Close() })

	return lg
}

func wavBytes(t *testing.T, waveform audio.Waveform) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	writer := audio.NewWAVWriter(audio.Format{SampleRate: waveform.SampleRate, BitDepth: 16, Channels: 1})
	require.NoError(t, writer.Write(path, waveform))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

type fakeXTTSServer struct {
	server      *httptest.Server
	loads       atomic.Int32
	speechCalls atomic.Int32
}

func newFakeXTTSServer(t *testing.T, clip []byte) *fakeXTTSServer {
	t.Helper()

	fake := &fakeXTTSServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/model/load", func(w http.ResponseWriter, _ *http.Request) {
		fake.loads.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/conditioning", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"gpt_cond_latent":   [][]float64{{0.1}},
			"speaker_embedding": []float64{0.2},
		})
	})
	mux.HandleFunc("/v1/generate/speech", func(w http.ResponseWriter, _ *http.Request) {
		fake.speechCalls.Add(1)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(clip)
	})

	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)

	return fake
}

func TestXTTSSynthesizer_EndToEnd(t *testing.T) {
	t.Parallel()

	clip := audio.Waveform{SampleRate: 24000, Samples: []float32{0, 0.25, -0.25, 0.5}}
	fake := newFakeXTTSServer(t, wavBytes(t, clip))

	synth := tts.NewXTTSSynthesizer(config.XTTSConfig{
		ServiceURL:     fake.server.URL,
		ConfigPath:     "voices/xtts/Ranni1/config.json",
		CheckpointPath: "voices/xtts/Ranni1/best_model.pth",
		VocabPath:      "voices/xtts/vocab.json",
		Device:         "cuda",
		TimeoutSeconds: 10,
	}, createTestLogger(t))

	ctx := context.Background()

	require.NoError(t, synth.Load(ctx))
	assert.Equal(t, int32(1), fake.loads.Load())

	cond, err := synth.ComputeConditioning(ctx, "temp/audio153.wav")
	require.NoError(t, err)
	assert.JSONEq(t, `[0.2]`, string(cond.SpeakerEmbedding))

	waveform, err := synth.Synthesize(ctx, "Hello there.", core.SynthesisParams{Language: "en"}, cond)
	require.NoError(t, err)
	assert.Equal(t, 24000, waveform.SampleRate)
	require.Len(t, waveform.Samples, 4)
	assert.InDelta(t, 0.25, waveform.Samples[1], 1e-3)
	assert.Equal(t, int32(1), fake.speechCalls.Load())
}

func TestXTTSSynthesizer_LoadSkipsWithoutCheckpoint(t *testing.T) {
	t.Parallel()

	fake := newFakeXTTSServer(t, nil)
	client := tts.NewHTTPClient(fake.server.URL, 5*time.Second, 0)
	synth := tts.NewXTTSSynthesizerWithClient(client, tts.LoadModelRequest{}, createTestLogger(t))

	require.NoError(t, synth.Load(context.Background()))
	assert.Zero(t, fake.loads.Load())
}

func TestXTTSSynthesizer_LoadFailsWhenServiceDown(t *testing.T) {
	t.Parallel()

	client := tts.NewHTTPClient("http://127.0.0.1:1", time.Second, 0)
	synth := tts.NewXTTSSynthesizerWithClient(client, tts.LoadModelRequest{}, createTestLogger(t))

	err := synth.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestXTTSSynthesizer_SynthesizeRejectsBadAudio(t *testing.T) {
	t.Parallel()

	fake := newFakeXTTSServer(t, []byte("RIFF....WAVE"))
	client := tts.NewHTTPClient(fake.server.URL, 5*time.Second, 0)
	synth := tts.NewXTTSSynthesizerWithClient(client, tts.LoadModelRequest{}, createTestLogger(t))

	_, err := synth.Synthesize(context.Background(), "Hi.", core.SynthesisParams{}, core.Conditioning{})
	require.ErrorIs(t, err, audio.ErrInvalidWAV)
}
