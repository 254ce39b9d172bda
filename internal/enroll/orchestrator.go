// Package enroll coordinates multiple capture attempts into one validated,
// stored voice template.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log"

	"voiceauth/internal/audio"
	"voiceauth/internal/extractor"
	"voiceauth/internal/mathutil"
	"voiceauth/internal/template"
)

// Status is the outcome of an enrollment run.
type Status string

const (
	StatusEnrolled Status = "enrolled"
	StatusFailed   Status = "failed"
)

// FailureReason classifies why enrollment failed.
type FailureReason string

const (
	// ReasonIncomplete: fewer successful extractions than required.
	ReasonIncomplete FailureReason = "EnrollmentIncomplete"
	// ReasonInconsistent: captures are individually fine but disagree with
	// each other, suggesting noise or different speakers.
	ReasonInconsistent FailureReason = "InconsistentSamples"
	// ReasonQuality: aggregate quality under the configured floor.
	ReasonQuality FailureReason = "QualityBelowThreshold"
)

// Config bounds the enrollment procedure.
type Config struct {
	// MinSuccessfulSamples is how many captures must extract cleanly.
	MinSuccessfulSamples int
	// MaxCaptureAttempts bounds how many captures are consumed in one run.
	MaxCaptureAttempts int
	// ConsistencyThreshold is the minimum pairwise cosine similarity the
	// successful embeddings must reach. A single clean sample is not enough
	// evidence of a stable signature; mutually disagreeing samples fail the
	// run instead of being averaged into a noisy template.
	ConsistencyThreshold float32
	// SilenceThreshold is the RMS amplitude below which a window counts as
	// silence when measuring the voiced ratio for the quality score. It must
	// match the extractor's setting or quality drifts from what extraction
	// actually saw.
	SilenceThreshold float32
	// Constraints bound each individual capture.
	Constraints audio.Constraints
}

// DefaultConfig returns the default enrollment bounds.
func DefaultConfig() Config {
	return Config{
		MinSuccessfulSamples: 3,
		MaxCaptureAttempts:   5,
		ConsistencyThreshold: 0.80,
		SilenceThreshold:     extractor.DefaultSilenceThreshold,
		Constraints:          audio.DefaultConstraints(),
	}
}

// SampleReport records what happened to one capture during enrollment, so
// the caller can tell the user which recordings to redo.
type SampleReport struct {
	Index    int    `json:"index"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the outcome of an enrollment run.
type Result struct {
	Status  Status         `json:"status"`
	Version int            `json:"version,omitempty"`
	Reason  FailureReason  `json:"reason,omitempty"`
	Quality float32        `json:"quality,omitempty"`
	Samples []SampleReport `json:"samples"`
}

// Orchestrator turns raw captures into a stored template.
type Orchestrator struct {
	extractor extractor.Extractor
	store     template.Store
	cfg       Config
}

// New creates an enrollment orchestrator.
func New(ext extractor.Extractor, store template.Store, cfg Config) *Orchestrator {
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = extractor.DefaultSilenceThreshold
	}
	return &Orchestrator{extractor: ext, store: store, cfg: cfg}
}

// Enroll runs the full procedure: extract each capture, discard failures with
// a per-sample reason, check mutual consistency, aggregate, and store. The
// raw samples are never persisted; only the aggregate embedding survives.
func (o *Orchestrator) Enroll(ctx context.Context, userID string, samples []*audio.Sample) (*Result, error) {
	if userID == "" {
		return nil, errors.New("enroll: missing user identity")
	}

	result := &Result{Status: StatusFailed}

	attempts := samples
	if len(attempts) > o.cfg.MaxCaptureAttempts {
		attempts = attempts[:o.cfg.MaxCaptureAttempts]
	}

	var (
		embeddings  [][]float32
		voicedRatio float32
	)
	for i, sample := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := sample.Validate(o.cfg.Constraints); err != nil {
			result.Samples = append(result.Samples, SampleReport{Index: i, Reason: err.Error()})
			continue
		}

		emb, err := o.extractor.Extract(ctx, sample)
		if err != nil {
			result.Samples = append(result.Samples, SampleReport{Index: i, Reason: err.Error()})
			continue
		}

		report := audio.AnalyzeActivity(sample, o.cfg.SilenceThreshold)
		voicedRatio += report.VoicedRatio
		embeddings = append(embeddings, emb.Vector)
		result.Samples = append(result.Samples, SampleReport{Index: i, Accepted: true})
	}

	if len(embeddings) < o.cfg.MinSuccessfulSamples {
		result.Reason = ReasonIncomplete
		log.Printf("[Enroll] user=%s incomplete: %d/%d successful captures",
			userID, len(embeddings), o.cfg.MinSuccessfulSamples)
		return result, nil
	}

	minSim := mathutil.MinPairwiseSimilarity(embeddings)
	if minSim < o.cfg.ConsistencyThreshold {
		result.Reason = ReasonInconsistent
		log.Printf("[Enroll] user=%s inconsistent captures: min pairwise similarity %.3f < %.3f",
			userID, minSim, o.cfg.ConsistencyThreshold)
		return result, nil
	}

	centroid := mathutil.Normalize(mathutil.Mean(embeddings))
	quality := aggregateQuality(minSim, voicedRatio/float32(len(embeddings)))

	version, err := o.store.Put(ctx, userID, o.extractor.Version(), centroid, quality)
	if err != nil {
		if errors.Is(err, template.ErrQualityBelowThreshold) {
			result.Reason = ReasonQuality
			result.Quality = quality
			return result, nil
		}
		return nil, fmt.Errorf("enroll: failed to store template: %w", err)
	}

	result.Status = StatusEnrolled
	result.Version = version
	result.Quality = quality
	log.Printf("[Enroll] user=%s enrolled template version %d (quality %.3f)", userID, version, quality)
	return result, nil
}

// aggregateQuality folds pairwise consistency and the average voiced ratio
// into one [0, 1] score.
func aggregateQuality(minPairwiseSim, avgVoicedRatio float32) float32 {
	q := 0.6*minPairwiseSim + 0.4*avgVoicedRatio
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return q
}
