package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CaptureState is the lifecycle state of a capture session.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
	CaptureCaptured
	CaptureDiscarded
	CaptureSubmitted
)

// String returns the human-readable name of the capture state.
func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureRecording:
		return "recording"
	case CaptureCaptured:
		return "captured"
	case CaptureDiscarded:
		return "discarded"
	case CaptureSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

var (
	// ErrCaptureState is returned when an operation is not valid in the
	// session's current state.
	ErrCaptureState = errors.New("audio: invalid capture state transition")
	// ErrCaptureEmpty is returned when a session is stopped before any
	// audio arrived.
	ErrCaptureEmpty = errors.New("audio: capture contains no audio")
)

// CaptureSession assembles streamed PCM frames into one Sample. It is an
// explicit finite state machine: Idle -> Recording -> Captured ->
// {Discarded | Submitted}. The fixed recording window is a cancellable
// scheduled transition: when maxDuration elapses the session stops itself,
// exactly as if Stop had been called.
type CaptureSession struct {
	id         string
	sampleRate int
	maxDur     time.Duration

	mu     sync.Mutex
	state  CaptureState
	frames []float32
	timer  *time.Timer
}

// NewCaptureSession creates an idle capture session for the given sample rate.
func NewCaptureSession(sampleRate int, maxDuration time.Duration) *CaptureSession {
	return &CaptureSession{
		id:         uuid.New().String(),
		sampleRate: sampleRate,
		maxDur:     maxDuration,
		state:      CaptureIdle,
	}
}

// ID returns the session identifier.
func (c *CaptureSession) ID() string { return c.id }

// State returns the current state.
func (c *CaptureSession) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions Idle -> Recording and arms the max-duration timer.
func (c *CaptureSession) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureIdle {
		return fmt.Errorf("%w: Start from %s", ErrCaptureState, c.state)
	}
	c.state = CaptureRecording
	if c.maxDur > 0 {
		c.timer = time.AfterFunc(c.maxDur, c.autoStop)
	}
	return nil
}

// AppendPCM16 adds raw little-endian PCM-16 bytes to the recording. Only
// valid while Recording; frames arriving after the window closed are dropped
// with an error so the caller can tell the recording already ended.
func (c *CaptureSession) AppendPCM16(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureRecording {
		return fmt.Errorf("%w: AppendPCM16 from %s", ErrCaptureState, c.state)
	}
	data, err := pcm16BytesToFloat32(raw)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, data...)
	return nil
}

// Stop transitions Recording -> Captured and cancels the scheduled stop.
func (c *CaptureSession) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *CaptureSession) stopLocked() error {
	if c.state != CaptureRecording {
		return fmt.Errorf("%w: Stop from %s", ErrCaptureState, c.state)
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.frames) == 0 {
		c.state = CaptureDiscarded
		return ErrCaptureEmpty
	}
	c.state = CaptureCaptured
	return nil
}

// autoStop is the scheduled transition fired by the max-duration timer.
func (c *CaptureSession) autoStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CaptureRecording {
		c.stopLocked() //nolint:errcheck // empty capture lands in Discarded
	}
}

// Discard abandons the session from any non-terminal state.
func (c *CaptureSession) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CaptureDiscarded, CaptureSubmitted:
		return fmt.Errorf("%w: Discard from %s", ErrCaptureState, c.state)
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = CaptureDiscarded
	c.frames = nil
	return nil
}

// Submit transitions Captured -> Submitted and hands the assembled buffer to
// the caller. The session keeps no reference to the audio afterwards.
func (c *CaptureSession) Submit() (*Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureCaptured {
		return nil, fmt.Errorf("%w: Submit from %s", ErrCaptureState, c.state)
	}
	c.state = CaptureSubmitted
	sample := &Sample{Data: c.frames, SampleRate: c.sampleRate, Channels: 1}
	c.frames = nil
	return sample, nil
}
