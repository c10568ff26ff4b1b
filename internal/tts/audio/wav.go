package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAVs are rejected.
	wavFormatPCM   = 1
	dirPermissions = 0o750
	unsigned8Bias  = 128
)

var (
	// ErrInvalidWAV is returned when data does not carry a readable RIFF/WAVE header.
	ErrInvalidWAV = errors.New("invalid wav data")
	// ErrUnsupportedEncoding is returned for non-PCM WAV payloads.
	ErrUnsupportedEncoding = errors.New("unsupported wav encoding")
)

// DecodeWAV reads an integer PCM WAV file into a mono waveform. Multichannel
// input is averaged down to one channel.
func DecodeWAV(data []byte) (Waveform, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Waveform{}, ErrInvalidWAV
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		return Waveform{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedEncoding, decoder.WavAudioFormat)
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to read pcm data: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	if validateBitDepth(bitDepth) != nil {
		return Waveform{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedEncoding, bitDepth)
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		return Waveform{}, fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}

	return Waveform{
		SampleRate: int(decoder.SampleRate),
		Samples:    downmix(buffer.Data, channels, bitDepth),
	}, nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to read wav file %s: %w", path, err)
	}

	return DecodeWAV(data)
}

func downmix(interleaved []int, channels, bitDepth int) []float32 {
	scale := float32(int64(1) << (bitDepth - 1))
	frames := len(interleaved) / channels
	samples := make([]float32, frames)

	for frame := range frames {
		var sum float32

		for channel := range channels {
			value := interleaved[frame*channels+channel]
			if bitDepth == BIT_DEPTH_8 {
				value -= unsigned8Bias
			}

			sum += float32(value) / scale
		}

		samples[frame] = sum / float32(channels)
	}

	return samples
}

// WAVWriter encodes waveforms as PCM WAV files in a fixed format.
type WAVWriter struct {
	Format Format
}

// NewWAVWriter returns a writer for format.
func NewWAVWriter(format Format) *WAVWriter {
	return &WAVWriter{Format: format}
}

// Write encodes waveform to path, creating parent directories. Samples are clamped
// to [-1, 1]; mono samples are duplicated across every output channel.
func (w *WAVWriter) Write(path string, waveform Waveform) error {
	formatErr := w.Format.Validate()
	if formatErr != nil {
		return formatErr
	}

	if waveform.SampleRate != w.Format.SampleRate {
		return fmt.Errorf(
			"%w: waveform is %d Hz, writer expects %d Hz",
			ErrSampleRateMismatch, waveform.SampleRate, w.Format.SampleRate,
		)
	}

	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file %s: %w", path, err)
	}

	encoder := wav.NewEncoder(file, w.Format.SampleRate, w.Format.BitDepth, w.Format.Channels, wavFormatPCM)

	writeErr := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.Format.Channels, SampleRate: w.Format.SampleRate},
		Data:           w.quantize(waveform.Samples),
		SourceBitDepth: w.Format.BitDepth,
	})
	closeEncoderErr := encoder.Close()
	closeFileErr := file.Close()

	switch {
	case writeErr != nil:
		return fmt.Errorf("failed to encode wav file %s: %w", path, writeErr)
	case closeEncoderErr != nil:
		return fmt.Errorf("failed to finalize wav file %s: %w", path, closeEncoderErr)
	case closeFileErr != nil:
		return fmt.Errorf("failed to close wav file %s: %w", path, closeFileErr)
	}

	return nil
}

// quantize scales samples to signed integers of the writer's bit depth. The
// scaling runs in float64 because float32 cannot represent 2^31-1, and the
// result is clamped to the representable range.
func (w *WAVWriter) quantize(samples []float32) []int {
	maxValue := int64(1)<<(w.Format.BitDepth-1) - 1
	minValue := -maxValue - 1
	peak := float64(maxValue)
	data := make([]int, 0, len(samples)*w.Format.Channels)

	for _, sample := range samples {
		clamped := min(max(float64(sample), -1), 1)

		value := int(min(max(int64(clamped*peak), minValue), maxValue))
		if w.Format.BitDepth == BIT_DEPTH_8 {
			value += unsigned8Bias
		}

		for range w.Format.Channels {
			data = append(data, value)
		}
	}

	return data
}
