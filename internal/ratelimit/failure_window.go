// Package ratelimit tracks failed verification attempts per user identity and
// enforces lockout after too many failures inside a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// failureBucket tracks failed attempts within the window for one user.
type failureBucket struct {
	timestamps []time.Time  // Failure timestamps within the window
	lastAccess time.Time    // Last access time for cleanup
	mu         sync.RWMutex // Per-bucket locking for fine-grained concurrency
}

// FailureWindow implements sliding-window lockout. Rejected verification
// attempts are recorded per user; once maxFailures accumulate inside the
// window the user is locked out until the oldest failure ages out. Accepted
// attempts reset the counter.
type FailureWindow struct {
	buckets     sync.Map       // string (user identity) -> *failureBucket
	windowDur   time.Duration  // Sliding window duration
	maxFailures int            // Failures allowed before lockout
	cleanupTick *time.Ticker   // Periodic cleanup ticker
	stopCleanup chan struct{}  // Signal to stop cleanup goroutine
	cleanupWG   sync.WaitGroup // Wait group for cleanup goroutine
}

// NewFailureWindow creates a failure tracker. cleanupInterval controls how
// often idle buckets are evicted.
func NewFailureWindow(windowDuration time.Duration, maxFailures int, cleanupInterval time.Duration) *FailureWindow {
	fw := &FailureWindow{
		windowDur:   windowDuration,
		maxFailures: maxFailures,
		cleanupTick: time.NewTicker(cleanupInterval),
		stopCleanup: make(chan struct{}),
	}

	fw.cleanupWG.Add(1)
	go fw.cleanupLoop()

	return fw
}

// LockedOut reports whether the user has exceeded the failure limit within
// the window, and when the lockout will lift.
func (fw *FailureWindow) LockedOut(userID string) (bool, time.Time) {
	value, ok := fw.buckets.Load(userID)
	if !ok {
		return false, time.Time{}
	}
	bucket := value.(*failureBucket)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()
	bucket.lastAccess = now
	fw.pruneExpired(bucket, now)

	if len(bucket.timestamps) < fw.maxFailures {
		return false, time.Time{}
	}
	// Lockout lifts when the oldest failure leaves the window.
	return true, bucket.timestamps[0].Add(fw.windowDur)
}

// RecordFailure registers one rejected attempt for the user. Concurrent
// failures from the same identity all land; undercounting would let a retry
// storm slip past lockout.
func (fw *FailureWindow) RecordFailure(userID string) {
	now := time.Now()
	value, _ := fw.buckets.LoadOrStore(userID, &failureBucket{
		timestamps: make([]time.Time, 0),
		lastAccess: now,
	})
	bucket := value.(*failureBucket)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now
	fw.pruneExpired(bucket, now)
	bucket.timestamps = append(bucket.timestamps, now)
}

// Reset clears the user's failure history. Called on accepted verification.
func (fw *FailureWindow) Reset(userID string) {
	value, ok := fw.buckets.Load(userID)
	if !ok {
		return
	}
	bucket := value.(*failureBucket)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = time.Now()
	bucket.timestamps = bucket.timestamps[:0]
}

// pruneExpired removes timestamps outside the current window. Caller holds
// the bucket lock.
func (fw *FailureWindow) pruneExpired(bucket *failureBucket, now time.Time) {
	cutoff := now.Add(-fw.windowDur)

	validStart := len(bucket.timestamps)
	for i, ts := range bucket.timestamps {
		if ts.After(cutoff) {
			validStart = i
			break
		}
	}

	if validStart > 0 {
		// Copy into a fresh slice to avoid holding references to expired
		// timestamps in the backing array.
		newTimestamps := make([]time.Time, len(bucket.timestamps)-validStart)
		copy(newTimestamps, bucket.timestamps[validStart:])
		bucket.timestamps = newTimestamps
	}
}

// cleanupLoop periodically removes idle buckets to prevent memory leaks.
func (fw *FailureWindow) cleanupLoop() {
	defer fw.cleanupWG.Done()

	for {
		select {
		case <-fw.cleanupTick.C:
			fw.performCleanup()
		case <-fw.stopCleanup:
			return
		}
	}
}

// performCleanup removes buckets that have been idle for twice the window.
func (fw *FailureWindow) performCleanup() {
	cutoff := time.Now().Add(-fw.windowDur * 2)

	var expired []string
	fw.buckets.Range(func(k, v interface{}) bool {
		bucket := v.(*failureBucket)
		bucket.mu.RLock()
		lastAccess := bucket.lastAccess
		bucket.mu.RUnlock()

		if lastAccess.Before(cutoff) {
			expired = append(expired, k.(string))
		}
		return true
	})

	for _, k := range expired {
		fw.buckets.Delete(k)
	}
}

// Stop stops the cleanup goroutine and releases the ticker.
func (fw *FailureWindow) Stop() {
	if fw.cleanupTick != nil {
		fw.cleanupTick.Stop()
	}
	close(fw.stopCleanup)
	fw.cleanupWG.Wait()
}

// Stats contains a snapshot of tracker state.
type Stats struct {
	ActiveBuckets  int           // Users with tracked failures
	TotalFailures  int           // Failure timestamps currently tracked
	WindowDuration time.Duration // Sliding window duration
	MaxFailures    int           // Failures allowed before lockout
}

// GetStats returns current tracker statistics.
func (fw *FailureWindow) GetStats() Stats {
	bucketCount := 0
	total := 0

	fw.buckets.Range(func(_, v interface{}) bool {
		bucketCount++
		bucket := v.(*failureBucket)
		bucket.mu.RLock()
		total += len(bucket.timestamps)
		bucket.mu.RUnlock()
		return true
	})

	return Stats{
		ActiveBuckets:  bucketCount,
		TotalFailures:  total,
		WindowDuration: fw.windowDur,
		MaxFailures:    fw.maxFailures,
	}
}
