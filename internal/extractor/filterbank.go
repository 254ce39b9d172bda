package extractor

import (
	"context"
	"fmt"
	"math"

	"voiceauth/internal/audio"
	"voiceauth/internal/mathutil"
)

// Default filterbank parameters.
const (
	DefaultDimensions       = 64
	DefaultSilenceThreshold = 0.01
	DefaultMinVoicedSec     = 1.0

	frameSec = 0.032 // analysis frame length
	hopSec   = 0.016 // frame hop (50% overlap)
	bandLoHz = 100.0
	logEps   = 1e-12
)

// FilterbankConfig configures the spectral filterbank extractor.
type FilterbankConfig struct {
	// Dimensions is the number of frequency bands (embedding dimensionality D).
	Dimensions int
	// SilenceThreshold is the RMS amplitude below which a window counts as
	// silence for the insufficient-signal check.
	SilenceThreshold float32
	// MinVoicedSec is the minimum continuous voiced duration required before
	// extraction is attempted.
	MinVoicedSec float64
}

// DefaultFilterbankConfig returns the default extractor parameters.
func DefaultFilterbankConfig() FilterbankConfig {
	return FilterbankConfig{
		Dimensions:       DefaultDimensions,
		SilenceThreshold: DefaultSilenceThreshold,
		MinVoicedSec:     DefaultMinVoicedSec,
	}
}

// Filterbank is a deterministic spectral-envelope extractor. It measures mean
// energy in D log-spaced frequency bands over Hamming-windowed frames
// (Goertzel per band), log-compresses, subtracts the log-domain mean, and
// L2-normalizes. Mean subtraction cancels the constant log-domain offset a
// gain change introduces, so the output is gain-invariant; normalization
// makes it unit length for cosine scoring.
type Filterbank struct {
	cfg FilterbankConfig
}

// NewFilterbank creates a filterbank extractor. Zero config fields fall back
// to defaults. At least two bands are required: the log-spaced band layout
// divides by D-1, and a one-band envelope carries no spectral shape anyway.
func NewFilterbank(cfg FilterbankConfig) *Filterbank {
	if cfg.Dimensions < 2 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.MinVoicedSec <= 0 {
		cfg.MinVoicedSec = DefaultMinVoicedSec
	}
	return &Filterbank{cfg: cfg}
}

// Dimensions returns the embedding dimensionality D.
func (f *Filterbank) Dimensions() int { return f.cfg.Dimensions }

// Version identifies this extractor. The dimensionality is part of the
// version so embeddings of different widths are never comparable.
func (f *Filterbank) Version() string {
	return fmt.Sprintf("fbank-v1-d%d", f.cfg.Dimensions)
}

// Extract computes the spectral-envelope embedding for a sample.
func (f *Filterbank) Extract(ctx context.Context, sample *audio.Sample) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return Embedding{}, err
	}
	if sample == nil || len(sample.Data) == 0 {
		return Embedding{}, fmt.Errorf("%w: empty sample", ErrUnsupportedFormat)
	}
	if sample.Channels != 1 {
		return Embedding{}, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, sample.Channels)
	}
	if sample.SampleRate < 8000 || sample.SampleRate > 48000 {
		return Embedding{}, fmt.Errorf("%w: sample rate %d Hz", ErrUnsupportedFormat, sample.SampleRate)
	}

	report := audio.AnalyzeActivity(sample, f.cfg.SilenceThreshold)
	if report.VoicedSeconds < f.cfg.MinVoicedSec {
		return Embedding{}, fmt.Errorf("%w: %.2fs continuous speech, need %.2fs",
			ErrInsufficientSignal, report.VoicedSeconds, f.cfg.MinVoicedSec)
	}

	vector := f.bandEnergies(sample)

	// Log-compress, remove the gain offset, normalize to unit length.
	logBands := make([]float32, len(vector))
	var mean float64
	for i, e := range vector {
		lv := math.Log(float64(e) + logEps)
		logBands[i] = float32(lv)
		mean += lv
	}
	mean /= float64(len(logBands))
	for i := range logBands {
		logBands[i] -= float32(mean)
	}

	return Embedding{
		Vector:  mathutil.Normalize(logBands),
		Version: f.Version(),
	}, nil
}

// bandEnergies computes mean per-band energy across Hamming-windowed frames
// using the Goertzel algorithm at log-spaced center frequencies.
func (f *Filterbank) bandEnergies(sample *audio.Sample) []float32 {
	rate := float64(sample.SampleRate)
	frameLen := int(rate * frameSec)
	hop := int(rate * hopSec)
	if frameLen > len(sample.Data) {
		frameLen = len(sample.Data)
	}
	if hop <= 0 {
		hop = 1
	}

	// Band centers log-spaced between bandLoHz and just under Nyquist.
	d := f.cfg.Dimensions
	bandHi := 0.45 * rate
	coeffs := make([]float64, d)
	for i := 0; i < d; i++ {
		freq := bandLoHz * math.Pow(bandHi/bandLoHz, float64(i)/float64(d-1))
		coeffs[i] = 2 * math.Cos(2*math.Pi*freq/rate)
	}

	window := hammingWindow(frameLen)
	frame := make([]float64, frameLen)
	energies := make([]float64, d)

	// frameLen is clamped to the buffer length above, so at least one frame
	// always runs.
	frames := 0
	for start := 0; start+frameLen <= len(sample.Data); start += hop {
		for i := 0; i < frameLen; i++ {
			frame[i] = float64(sample.Data[start+i]) * window[i]
		}
		for b, coeff := range coeffs {
			energies[b] += goertzelPower(frame, coeff)
		}
		frames++
	}

	out := make([]float32, d)
	for i, e := range energies {
		out[i] = float32(e / float64(frames))
	}
	return out
}

// goertzelPower runs the Goertzel recurrence over one frame and returns the
// signal power at the frequency encoded in coeff.
func goertzelPower(frame []float64, coeff float64) float64 {
	var s1, s2 float64
	for _, x := range frame {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
