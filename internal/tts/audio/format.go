// Package audio holds the waveform type the pipeline passes between stages,
// silence generation, concatenation, and the WAV codec used for model I/O.
package audio

import (
	"errors"
	"fmt"
)

// Default output settings. XTTS renders 24 kHz mono.
const (
	DEFAULT_SAMPLE_RATE = 24000
	DEFAULT_BIT_DEPTH   = 16
	DEFAULT_CHANNELS    = 1
)

// Supported PCM bit depths.
const (
	BIT_DEPTH_8  = 8
	BIT_DEPTH_16 = 16
	BIT_DEPTH_24 = 24
	BIT_DEPTH_32 = 32
)

// Validation limits.
const (
	MAX_SAMPLE_RATE = 192000
	MAX_CHANNELS    = 8
)

const (
	ERR_FMT_SAMPLE_RATE_RANGE = "%w: sample rate must be between 1 and %d Hz, got %d"
	ERR_FMT_BIT_DEPTH_VALUES  = "%w: bit depth must be 8, 16, 24, or 32, got %d"
	ERR_FMT_CHANNELS_RANGE    = "%w: channels must be between 1 and %d, got %d"
)

// ErrInvalidFormat is returned when output format settings are out of range.
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes the PCM layout of a WAV file written by the pipeline.
type Format struct {
	SampleRate int `json:"sampleRate"`
	BitDepth   int `json:"bitDepth"`
	Channels   int `json:"channels"`
}

// NewDefaultFormat returns 24 kHz, 16-bit mono.
func NewDefaultFormat() Format {
	return Format{
		SampleRate: DEFAULT_SAMPLE_RATE,
		BitDepth:   DEFAULT_BIT_DEPTH,
		Channels:   DEFAULT_CHANNELS,
	}
}

// Validate checks that the format can be encoded.
func (f Format) Validate() error {
	sampleRateErr := validateSampleRate(f.SampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	bitDepthErr := validateBitDepth(f.BitDepth)
	if bitDepthErr != nil {
		return bitDepthErr
	}

	channelsErr := validateChannels(f.Channels)
	if channelsErr != nil {
		return channelsErr
	}

	return nil
}

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidFormat, MAX_SAMPLE_RATE, sampleRate)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case BIT_DEPTH_8, BIT_DEPTH_16, BIT_DEPTH_24, BIT_DEPTH_32:
		return nil
	default:
		return fmt.Errorf(ERR_FMT_BIT_DEPTH_VALUES, ErrInvalidFormat, bitDepth)
	}
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MAX_CHANNELS {
		return fmt.Errorf(ERR_FMT_CHANNELS_RANGE, ErrInvalidFormat, MAX_CHANNELS, channels)
	}

	return nil
}
