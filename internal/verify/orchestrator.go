// Package verify runs the login-time verification flow: fetch template,
// score, decide, record.
//
// Each attempt moves through an explicit state machine:
//
//	Received -> Extracting -> Matching -> Decided -> Recorded
//
// The Decided -> Recorded transition happens on every path, including lockout
// and extraction failure, so the audit history is complete regardless of
// outcome.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"voiceauth/internal/audio"
	"voiceauth/internal/audit"
	"voiceauth/internal/extractor"
	"voiceauth/internal/matching"
	"voiceauth/internal/template"
)

// Stage is a verification attempt's position in the state machine.
type Stage int

const (
	StageReceived Stage = iota
	StageExtracting
	StageMatching
	StageDecided
	StageRecorded
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageExtracting:
		return "extracting"
	case StageMatching:
		return "matching"
	case StageDecided:
		return "decided"
	case StageRecorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// Reason classifies a verification decision.
type Reason string

const (
	ReasonExtractionFailed    Reason = "ExtractionFailed"
	ReasonNoTemplate          Reason = "NoTemplate"
	ReasonLockedOut           Reason = "LockedOut"
	ReasonScoreBelowThreshold Reason = "ScoreBelowThreshold"
	ReasonScoreAboveThreshold Reason = "ScoreAboveThreshold"
	ReasonVersionMismatch     Reason = "VersionMismatch"
)

// ErrMissingIdentity is returned when no claimed identity accompanies the
// sample. The identity must come from an authenticated context; the engine
// never reads it out of unauthenticated payload fields.
var ErrMissingIdentity = errors.New("verify: missing user identity")

// Limiter is the rate-limit collaborator consulted on every attempt.
type Limiter interface {
	LockedOut(userID string) (bool, time.Time)
	RecordFailure(userID string)
	Reset(userID string)
}

// Result is the outcome of one verification attempt. Score is populated only
// when a comparison actually ran; callers facing end users must not disclose
// it (score disclosure aids oracle attacks).
type Result struct {
	AttemptID string
	Decision  matching.Decision
	Reason    Reason
	Score     float32
	Scored    bool
	// RetryAt is set for lockout rejections: when the cooldown lifts.
	RetryAt time.Time
}

// Config bounds the verification flow.
type Config struct {
	// Constraints bound the incoming capture.
	Constraints audio.Constraints
	// Policy is the accept/reject threshold policy.
	Policy matching.Policy
}

// Orchestrator is the end-to-end verification flow.
type Orchestrator struct {
	extractor extractor.Extractor
	store     template.Store
	engine    *matching.Engine
	limiter   Limiter
	attempts  audit.Store
	cfg       Config
}

// New creates a verification orchestrator.
func New(ext extractor.Extractor, store template.Store, engine *matching.Engine,
	limiter Limiter, attempts audit.Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		extractor: ext,
		store:     store,
		engine:    engine,
		limiter:   limiter,
		attempts:  attempts,
		cfg:       cfg,
	}
}

// attempt is the per-request context object: all mutable attempt state lives
// here, nothing is process-global.
type attempt struct {
	id      string
	userID  string
	stage   Stage
	started time.Time
	result  Result
}

func (a *attempt) advance(s Stage) { a.stage = s }

// Verify runs one verification attempt against the claimed identity.
func (o *Orchestrator) Verify(ctx context.Context, userID string, sample *audio.Sample) (*Result, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}
	if sample == nil {
		return nil, errors.New("verify: missing audio sample")
	}

	att := &attempt{
		id:      uuid.New().String(),
		userID:  userID,
		stage:   StageReceived,
		started: time.Now(),
	}
	att.result.AttemptID = att.id

	// Malformed input is rejected before the state machine runs; it costs a
	// log line, not an audit record.
	if err := sample.Validate(o.cfg.Constraints); err != nil {
		log.Printf("[Verify] user=%s rejected malformed sample: %v", userID, err)
		return nil, err
	}

	if err := o.run(ctx, att, sample); err != nil {
		// Infrastructure faults are the request's problem, not the caller's
		// biometric record: nothing is audited and no failure is counted.
		return nil, err
	}

	// Decided -> Recorded: always append the audit record, on every path.
	att.advance(StageDecided)
	rec := audit.Attempt{
		ID:        att.id,
		UserID:    userID,
		Timestamp: att.started,
		Score:     att.result.Score,
		Scored:    att.result.Scored,
		Decision:  att.result.Decision.String(),
		Reason:    string(att.result.Reason),
	}
	if err := o.attempts.Append(ctx, rec); err != nil {
		return &att.result, fmt.Errorf("verify: failed to record attempt: %w", err)
	}
	att.advance(StageRecorded)

	// Rejects feed the lockout counter; accepts clear it.
	if att.result.Decision == matching.Accept {
		o.limiter.Reset(userID)
	} else if att.result.Reason != ReasonLockedOut {
		o.limiter.RecordFailure(userID)
	}

	log.Printf("[Verify] user=%s attempt=%s decision=%s reason=%s",
		userID, att.id, att.result.Decision, att.result.Reason)
	return &att.result, nil
}

// run executes Received -> Extracting -> Matching and fills in the decision.
// A returned error means the attempt never reached a decision.
func (o *Orchestrator) run(ctx context.Context, att *attempt, sample *audio.Sample) error {
	// Lockout is checked before any scoring so a locked-out caller learns
	// nothing about how close their sample was.
	if locked, retryAt := o.limiter.LockedOut(att.userID); locked {
		att.result.Decision = matching.Reject
		att.result.Reason = ReasonLockedOut
		att.result.RetryAt = retryAt
		return nil
	}

	att.advance(StageExtracting)
	candidate, err := o.extractor.Extract(ctx, sample)
	if err != nil {
		att.result.Decision = matching.Reject
		att.result.Reason = ReasonExtractionFailed
		return nil
	}

	att.advance(StageMatching)
	tmpl, err := o.store.GetActive(ctx, att.userID, o.extractor.Version())
	if errors.Is(err, template.ErrNotFound) {
		att.result.Decision = matching.Reject
		att.result.Reason = ReasonNoTemplate
		return nil
	}
	if err != nil {
		// A storage fault says nothing about the caller's voice.
		return fmt.Errorf("verify: failed to load template: %w", err)
	}

	score, err := o.engine.Score(candidate, tmpl)
	if err != nil {
		// Should never happen when the collaborator extracts with the
		// current version; logged as a system fault.
		log.Printf("[Verify] user=%s system fault: %v", att.userID, err)
		att.result.Decision = matching.Reject
		att.result.Reason = ReasonVersionMismatch
		return nil
	}

	att.result.Score = score
	att.result.Scored = true
	if o.cfg.Policy.Decide(score) == matching.Accept {
		att.result.Decision = matching.Accept
		att.result.Reason = ReasonScoreAboveThreshold
	} else {
		att.result.Decision = matching.Reject
		att.result.Reason = ReasonScoreBelowThreshold
	}
	return nil
}
