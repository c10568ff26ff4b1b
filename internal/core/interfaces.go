// Package core defines the contracts between the voice-clone pipeline and the
// model services it drives.
package core

import (
	"context"
	"encoding/json"

	"github.com/book-expert/voiceclone/internal/tts/audio"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	UploadFile(ctx context.Context, key, path string) error
}

// Conditioning is the speaker identity state XTTS derives from a reference clip.
// It is computed once per job and passed back unchanged on every synthesis call.
type Conditioning struct {
	GPTCondLatent    json.RawMessage `json:"gpt_cond_latent"`
	SpeakerEmbedding json.RawMessage `json:"speaker_embedding"`
}

// SynthesisParams carries per-call XTTS sampling settings.
type SynthesisParams struct {
	Language    string
	Temperature float64
	Speed       float64
}

// Synthesizer turns one sentence into speech in a cloned voice.
type Synthesizer interface {
	ComputeConditioning(ctx context.Context, referenceAudioPaths ...string) (Conditioning, error)
	Synthesize(ctx context.Context, text string, params SynthesisParams, cond Conditioning) (audio.Waveform, error)
}

// VoiceConverter imposes a target timbre on an existing audio file. inputPath
// and outputPath may be the same file.
type VoiceConverter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// AudioWriter persists a waveform.
type AudioWriter interface {
	Write(path string, waveform audio.Waveform) error
}
