package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func newTestWindow(window time.Duration, maxFailures int) *FailureWindow {
	return NewFailureWindow(window, maxFailures, time.Minute)
}

func TestLockoutAfterMaxFailures(t *testing.T) {
	fw := newTestWindow(time.Minute, 3)
	defer fw.Stop()

	for i := 0; i < 2; i++ {
		fw.RecordFailure("alice")
	}
	if locked, _ := fw.LockedOut("alice"); locked {
		t.Fatal("locked out below the failure limit")
	}

	fw.RecordFailure("alice")
	locked, retryAt := fw.LockedOut("alice")
	if !locked {
		t.Fatal("not locked out after reaching the failure limit")
	}
	if retryAt.IsZero() || retryAt.Before(time.Now()) {
		t.Errorf("retry time %v should be in the future", retryAt)
	}
}

func TestLockoutIsPerUser(t *testing.T) {
	fw := newTestWindow(time.Minute, 2)
	defer fw.Stop()

	fw.RecordFailure("alice")
	fw.RecordFailure("alice")

	if locked, _ := fw.LockedOut("alice"); !locked {
		t.Error("alice should be locked out")
	}
	if locked, _ := fw.LockedOut("bob"); locked {
		t.Error("bob's counter must be independent of alice's")
	}
}

func TestResetClearsFailures(t *testing.T) {
	fw := newTestWindow(time.Minute, 2)
	defer fw.Stop()

	fw.RecordFailure("alice")
	fw.RecordFailure("alice")
	fw.Reset("alice")

	if locked, _ := fw.LockedOut("alice"); locked {
		t.Error("still locked out after reset")
	}

	// Resetting an untracked user is a no-op.
	fw.Reset("ghost")
}

func TestWindowExpiry(t *testing.T) {
	fw := newTestWindow(50*time.Millisecond, 2)
	defer fw.Stop()

	fw.RecordFailure("alice")
	fw.RecordFailure("alice")
	if locked, _ := fw.LockedOut("alice"); !locked {
		t.Fatal("should be locked out inside the window")
	}

	time.Sleep(80 * time.Millisecond)
	if locked, _ := fw.LockedOut("alice"); locked {
		t.Error("lockout should lift once failures age out of the window")
	}
}

func TestConcurrentFailures(t *testing.T) {
	fw := newTestWindow(time.Minute, 100)
	defer fw.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fw.RecordFailure("alice")
		}()
	}
	wg.Wait()

	// Every concurrent failure must land; undercounting would let a retry
	// storm slip past lockout.
	stats := fw.GetStats()
	if stats.TotalFailures != 100 {
		t.Errorf("tracked %d failures, want 100", stats.TotalFailures)
	}
	if locked, _ := fw.LockedOut("alice"); !locked {
		t.Error("should be locked out at exactly the limit")
	}
}

func TestGetStats(t *testing.T) {
	fw := newTestWindow(time.Minute, 5)
	defer fw.Stop()

	fw.RecordFailure("alice")
	fw.RecordFailure("bob")

	stats := fw.GetStats()
	if stats.ActiveBuckets != 2 || stats.TotalFailures != 2 {
		t.Errorf("stats = %+v, want 2 buckets / 2 failures", stats)
	}
	if stats.MaxFailures != 5 || stats.WindowDuration != time.Minute {
		t.Errorf("stats config mismatch: %+v", stats)
	}
}

func TestCleanupEvictsIdleBuckets(t *testing.T) {
	fw := NewFailureWindow(10*time.Millisecond, 3, 10*time.Millisecond)
	defer fw.Stop()

	fw.RecordFailure("alice")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if fw.GetStats().ActiveBuckets == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("idle bucket never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
