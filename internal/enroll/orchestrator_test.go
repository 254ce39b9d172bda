package enroll

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceauth/internal/audio"
	"voiceauth/internal/extractor"
	"voiceauth/internal/mathutil"
	"voiceauth/internal/template"
)

const stubVersion = "stub-v1-d2"

// stubExtractor returns scripted embeddings in order, so tests control the
// geometry without depending on signal processing.
type stubExtractor struct {
	vectors [][]float32
	errs    []error
	calls   int
}

func (s *stubExtractor) Extract(ctx context.Context, sample *audio.Sample) (extractor.Embedding, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return extractor.Embedding{}, s.errs[i]
	}
	return extractor.Embedding{Vector: s.vectors[i], Version: stubVersion}, nil
}

func (s *stubExtractor) Dimensions() int { return 2 }
func (s *stubExtractor) Version() string { return stubVersion }

// voicedSample builds a 3-second 220Hz tone, loud enough to count as voiced
// throughout.
func voicedSample() *audio.Sample {
	rate := 16000
	data := make([]float32, rate*3)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return &audio.Sample{Data: data, SampleRate: rate, Channels: 1}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConsistencyThreshold = 0.80
	return cfg
}

func TestEnrollSuccess(t *testing.T) {
	ext := &stubExtractor{vectors: [][]float32{
		{1, 0},
		{0.995, 0.0998},
		{0.995, -0.0998},
	}}
	store := template.NewMemory(0.5)
	o := New(ext, store, testConfig())

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{voicedSample(), voicedSample(), voicedSample()})
	require.NoError(t, err)

	assert.Equal(t, StatusEnrolled, result.Status)
	assert.Equal(t, 1, result.Version)
	assert.Greater(t, result.Quality, float32(0.5))
	require.Len(t, result.Samples, 3)
	for _, report := range result.Samples {
		assert.True(t, report.Accepted, "sample %d should be accepted", report.Index)
	}

	// The stored template is the normalized centroid of the embeddings.
	tmpl, err := store.GetActive(context.Background(), "alice", stubVersion)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(mathutil.Norm(tmpl.Embedding)), 0.001)
	for _, v := range ext.vectors {
		sim := mathutil.CosineSimilarity(tmpl.Embedding, v)
		assert.Greater(t, sim, float32(0.9), "centroid should be close to every input")
	}
}

func TestEnrollIncomplete(t *testing.T) {
	// Three captures, but one fails extraction: below the minimum of three.
	ext := &stubExtractor{
		vectors: [][]float32{{1, 0}, nil, {0.99, 0.1}},
		errs:    []error{nil, extractor.ErrInsufficientSignal, nil},
	}
	store := template.NewMemory(0.5)
	o := New(ext, store, testConfig())

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{voicedSample(), voicedSample(), voicedSample()})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ReasonIncomplete, result.Reason)
	require.Len(t, result.Samples, 3)
	assert.True(t, result.Samples[0].Accepted)
	assert.False(t, result.Samples[1].Accepted)
	assert.NotEmpty(t, result.Samples[1].Reason)

	_, err = store.GetActive(context.Background(), "alice", stubVersion)
	assert.ErrorIs(t, err, template.ErrNotFound, "failed enrollment must store nothing")
}

func TestEnrollRejectsInvalidCaptures(t *testing.T) {
	short := &audio.Sample{Data: make([]float32, 100), SampleRate: 16000, Channels: 1}
	ext := &stubExtractor{vectors: [][]float32{{1, 0}}}
	o := New(ext, template.NewMemory(0.5), testConfig())

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{short, short, short})
	require.NoError(t, err)

	assert.Equal(t, ReasonIncomplete, result.Reason)
	assert.Zero(t, ext.calls, "invalid captures must not reach the extractor")
	for _, report := range result.Samples {
		assert.False(t, report.Accepted)
		assert.NotEmpty(t, report.Reason)
	}
}

func TestEnrollInconsistentSamples(t *testing.T) {
	// Two agreeing embeddings and one orthogonal outlier.
	ext := &stubExtractor{vectors: [][]float32{
		{1, 0},
		{0.995, 0.0998},
		{0, 1},
	}}
	store := template.NewMemory(0.5)
	o := New(ext, store, testConfig())

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{voicedSample(), voicedSample(), voicedSample()})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ReasonInconsistent, result.Reason)

	_, err = store.GetActive(context.Background(), "alice", stubVersion)
	assert.ErrorIs(t, err, template.ErrNotFound)
}

func TestEnrollQualityBelowThreshold(t *testing.T) {
	ext := &stubExtractor{vectors: [][]float32{
		{1, 0},
		{0.995, 0.0998},
		{0.995, -0.0998},
	}}
	// A store demanding near-perfect quality rejects the aggregate.
	store := template.NewMemory(0.995)
	o := New(ext, store, testConfig())

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{voicedSample(), voicedSample(), voicedSample()})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, ReasonQuality, result.Reason)
	assert.Greater(t, result.Quality, float32(0))
}

func TestEnrollQualityUsesConfiguredSilenceThreshold(t *testing.T) {
	// A quiet but clean recording: RMS ~0.0035, below the default silence
	// threshold but above the configured one.
	quiet := func() *audio.Sample {
		rate := 16000
		data := make([]float32, rate*3)
		for i := range data {
			data[i] = float32(0.005 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
		}
		return &audio.Sample{Data: data, SampleRate: rate, Channels: 1}
	}

	ext := &stubExtractor{vectors: [][]float32{{1, 0}, {1, 0}, {1, 0}}}
	cfg := testConfig()
	cfg.SilenceThreshold = 0.001
	o := New(ext, template.NewMemory(0.5), cfg)

	result, err := o.Enroll(context.Background(), "alice",
		[]*audio.Sample{quiet(), quiet(), quiet()})
	require.NoError(t, err)
	require.Equal(t, StatusEnrolled, result.Status)

	// Identical embeddings and a fully voiced recording at this threshold put
	// the quality near 1. Measuring against the default threshold instead
	// would zero the voiced ratio and cap quality at 0.6.
	assert.Greater(t, result.Quality, float32(0.9))
}

func TestEnrollCapsCaptureAttempts(t *testing.T) {
	vectors := make([][]float32, 5)
	for i := range vectors {
		vectors[i] = []float32{1, 0}
	}
	ext := &stubExtractor{vectors: vectors}
	cfg := testConfig()
	cfg.MaxCaptureAttempts = 5
	o := New(ext, template.NewMemory(0.5), cfg)

	samples := make([]*audio.Sample, 7)
	for i := range samples {
		samples[i] = voicedSample()
	}
	result, err := o.Enroll(context.Background(), "alice", samples)
	require.NoError(t, err)

	assert.Len(t, result.Samples, 5, "captures beyond the limit are not consumed")
	assert.Equal(t, 5, ext.calls)
}

func TestEnrollMissingIdentity(t *testing.T) {
	o := New(&stubExtractor{}, template.NewMemory(0.5), testConfig())
	_, err := o.Enroll(context.Background(), "", []*audio.Sample{voicedSample()})
	assert.Error(t, err)
}

func TestEnrollCancelledContext(t *testing.T) {
	o := New(&stubExtractor{vectors: [][]float32{{1, 0}}}, template.NewMemory(0.5), testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Enroll(ctx, "alice", []*audio.Sample{voicedSample()})
	assert.True(t, errors.Is(err, context.Canceled))
}
