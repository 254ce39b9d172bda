package audio

import (
	"errors"
	"testing"
	"time"
)

// pcm16Frame encodes int16 samples as little-endian bytes.
func pcm16Frame(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func TestCaptureLifecycle(t *testing.T) {
	c := NewCaptureSession(16000, 0)
	if c.State() != CaptureIdle {
		t.Fatalf("new session state = %v, want idle", c.State())
	}
	if c.ID() == "" {
		t.Fatal("session should have an ID")
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.AppendPCM16(pcm16Frame([]int16{100, -100, 200})); err != nil {
		t.Fatalf("AppendPCM16 failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.State() != CaptureCaptured {
		t.Fatalf("state after Stop = %v, want captured", c.State())
	}

	sample, err := c.Submit()
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(sample.Data) != 3 || sample.SampleRate != 16000 || sample.Channels != 1 {
		t.Errorf("unexpected sample: %d frames, %d Hz, %d channels",
			len(sample.Data), sample.SampleRate, sample.Channels)
	}
	if c.State() != CaptureSubmitted {
		t.Errorf("state after Submit = %v, want submitted", c.State())
	}
}

func TestCaptureInvalidTransitions(t *testing.T) {
	c := NewCaptureSession(16000, 0)

	if err := c.AppendPCM16(pcm16Frame([]int16{1})); !errors.Is(err, ErrCaptureState) {
		t.Errorf("Append before Start: got %v, want ErrCaptureState", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrCaptureState) {
		t.Errorf("Stop before Start: got %v, want ErrCaptureState", err)
	}
	if _, err := c.Submit(); !errors.Is(err, ErrCaptureState) {
		t.Errorf("Submit before capture: got %v, want ErrCaptureState", err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrCaptureState) {
		t.Errorf("double Start: got %v, want ErrCaptureState", err)
	}
}

func TestCaptureEmptyStop(t *testing.T) {
	c := NewCaptureSession(16000, 0)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrCaptureEmpty) {
		t.Errorf("empty Stop: got %v, want ErrCaptureEmpty", err)
	}
	if c.State() != CaptureDiscarded {
		t.Errorf("state after empty Stop = %v, want discarded", c.State())
	}
}

func TestCaptureAutoStop(t *testing.T) {
	c := NewCaptureSession(16000, 20*time.Millisecond)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.AppendPCM16(pcm16Frame([]int16{1, 2, 3})); err != nil {
		t.Fatalf("AppendPCM16 failed: %v", err)
	}

	// The max-duration timer closes the window on its own.
	deadline := time.Now().Add(2 * time.Second)
	for c.State() == CaptureRecording {
		if time.Now().After(deadline) {
			t.Fatal("auto-stop never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if c.State() != CaptureCaptured {
		t.Fatalf("state after auto-stop = %v, want captured", c.State())
	}
	// Frames after the window closed are rejected.
	if err := c.AppendPCM16(pcm16Frame([]int16{4})); !errors.Is(err, ErrCaptureState) {
		t.Errorf("Append after auto-stop: got %v, want ErrCaptureState", err)
	}
	if _, err := c.Submit(); err != nil {
		t.Errorf("Submit after auto-stop failed: %v", err)
	}
}

func TestCaptureStopCancelsTimer(t *testing.T) {
	c := NewCaptureSession(16000, 30*time.Millisecond)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.AppendPCM16(pcm16Frame([]int16{1})); err != nil {
		t.Fatalf("AppendPCM16 failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// If the timer were still alive it would fire here; state must hold.
	time.Sleep(60 * time.Millisecond)
	if c.State() != CaptureCaptured {
		t.Errorf("state = %v after manual Stop, want captured", c.State())
	}
}

func TestCaptureDiscard(t *testing.T) {
	c := NewCaptureSession(16000, 0)
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.AppendPCM16(pcm16Frame([]int16{1, 2})); err != nil {
		t.Fatalf("AppendPCM16 failed: %v", err)
	}
	if err := c.Discard(); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if c.State() != CaptureDiscarded {
		t.Errorf("state after Discard = %v, want discarded", c.State())
	}
	if _, err := c.Submit(); !errors.Is(err, ErrCaptureState) {
		t.Errorf("Submit after Discard: got %v, want ErrCaptureState", err)
	}
	if err := c.Discard(); !errors.Is(err, ErrCaptureState) {
		t.Errorf("double Discard: got %v, want ErrCaptureState", err)
	}
}
