package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsTask(t *testing.T) {
	s := NewScheduler(nil)

	var runs atomic.Int32
	err := s.Register(Task{
		Name:     "tick",
		Schedule: "* * * * * *", // every second
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}

	status := s.Status()
	if len(status) != 1 || status[0].Name != "tick" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status[0].LastRun.IsZero() {
		t.Error("LastRun should be recorded")
	}
	if status[0].LastErr != "" {
		t.Errorf("unexpected task error: %s", status[0].LastErr)
	}
}

func TestSchedulerRecordsTaskError(t *testing.T) {
	s := NewScheduler(nil)

	if err := s.Register(Task{
		Name:     "failing",
		Schedule: "* * * * * *",
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for {
		status := s.Status()
		if len(status) == 1 && status[0].LastErr == "boom" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task error never recorded")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(nil)
	err := s.Register(Task{Name: "bad", Schedule: "not a cron expr", Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Error("invalid cron expression should fail registration")
	}
}

func TestSchedulerDoubleStart(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start should fail")
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
	s.Stop()
}
