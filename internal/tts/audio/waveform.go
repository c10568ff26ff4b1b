package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrSampleRateMismatch is returned when waveforms with different sample rates
// are joined. The pipeline never resamples.
var ErrSampleRateMismatch = errors.New("sample rate mismatch")

// Waveform is mono PCM audio with samples in [-1, 1].
type Waveform struct {
	SampleRate int
	Samples    []float32
}

// Len returns the number of samples.
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}

	return time.Duration(int64(len(w.Samples)) * int64(time.Second) / int64(w.SampleRate))
}

// Silence returns duration worth of zero samples at sampleRate.
func Silence(sampleRate int, duration time.Duration) Waveform {
	if sampleRate <= 0 || duration <= 0 {
		return Waveform{SampleRate: sampleRate, Samples: nil}
	}

	count := int64(sampleRate) * int64(duration) / int64(time.Second)

	return Waveform{SampleRate: sampleRate, Samples: make([]float32, count)}
}

// Concat joins parts in order. Parts with a zero sample rate and no samples are
// skipped; every other part must share one sample rate.
func Concat(parts ...Waveform) (Waveform, error) {
	var (
		sampleRate int
		total      int
	)

	for index, part := range parts {
		if part.SampleRate == 0 && len(part.Samples) == 0 {
			continue
		}

		if sampleRate == 0 {
			sampleRate = part.SampleRate
		}

		if part.SampleRate != sampleRate {
			return Waveform{}, fmt.Errorf(
				"%w: part %d is %d Hz, expected %d Hz",
				ErrSampleRateMismatch, index, part.SampleRate, sampleRate,
			)
		}

		total += len(part.Samples)
	}

	samples := make([]float32, 0, total)
	for _, part := range parts {
		samples = append(samples, part.Samples...)
	}

	return Waveform{SampleRate: sampleRate, Samples: samples}, nil
}
