// Package audio holds decoded voice recordings and the capture state machine
// that produces them. A Sample is a finite, already-materialized buffer; the
// engine never blocks on live streaming.
package audio

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrEmptySample       = errors.New("audio: empty sample")
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
	ErrTooShort          = errors.New("audio: recording shorter than minimum duration")
	ErrTooLong           = errors.New("audio: recording longer than maximum duration")
)

// Sample is one finite, decoded mono recording. Data holds PCM amplitudes
// normalized to [-1, 1]. Samples are created per capture request and discarded
// after extraction; only derived embeddings are ever persisted.
type Sample struct {
	Data       []float32
	SampleRate int
	Channels   int
}

// Constraints bound what a Sample must look like before it is eligible for
// feature extraction.
type Constraints struct {
	MinDurationSec float64
	MaxDurationSec float64
	MinSampleRate  int
	MaxSampleRate  int
}

// DefaultConstraints returns the constraints used when none are configured.
func DefaultConstraints() Constraints {
	return Constraints{
		MinDurationSec: 2.0,
		MaxDurationSec: 15.0,
		MinSampleRate:  8000,
		MaxSampleRate:  48000,
	}
}

// Duration returns the recording length in seconds.
func (s *Sample) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.SampleRate)
}

// Validate checks the sample against the given constraints. Format violations
// wrap ErrUnsupportedFormat; duration violations wrap ErrTooShort/ErrTooLong.
func (s *Sample) Validate(c Constraints) error {
	if len(s.Data) == 0 {
		return ErrEmptySample
	}
	if s.Channels != 1 {
		return fmt.Errorf("%w: %d channels (expected mono)", ErrUnsupportedFormat, s.Channels)
	}
	if s.SampleRate < c.MinSampleRate || s.SampleRate > c.MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d Hz outside [%d, %d]",
			ErrUnsupportedFormat, s.SampleRate, c.MinSampleRate, c.MaxSampleRate)
	}
	d := s.Duration()
	if d < c.MinDurationSec {
		return fmt.Errorf("%w: %.2fs < %.2fs", ErrTooShort, d, c.MinDurationSec)
	}
	if d > c.MaxDurationSec {
		return fmt.Errorf("%w: %.2fs > %.2fs", ErrTooLong, d, c.MaxDurationSec)
	}
	return nil
}

// FromPCM16 converts 16-bit little-endian PCM samples to a mono Sample with
// amplitudes scaled to [-1, 1].
func FromPCM16(samples []int16, sampleRate int) *Sample {
	data := make([]float32, len(samples))
	for i, v := range samples {
		data[i] = float32(v) / 32768.0
	}
	return &Sample{Data: data, SampleRate: sampleRate, Channels: 1}
}

// pcm16BytesToFloat32 decodes raw little-endian PCM-16 bytes. Odd trailing
// bytes are an error; packetized capture always sends whole samples.
func pcm16BytesToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio: PCM-16 data length must be even (got %d bytes)", len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		v := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}
