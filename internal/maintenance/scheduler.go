// Package maintenance runs scheduled background tasks: audit-log retention
// pruning and periodic lockout-tracker housekeeping reports.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one schedulable maintenance job.
type Task struct {
	Name     string
	Schedule string // cron expression with seconds field
	Run      func(ctx context.Context) error
}

// TaskStatus is the last known state of a registered task.
type TaskStatus struct {
	Name    string
	LastRun time.Time
	LastErr string
}

// Scheduler manages and executes maintenance tasks on a schedule.
type Scheduler struct {
	cron    *cron.Cron
	status  map[string]TaskStatus
	mu      sync.RWMutex
	running bool
	logger  *log.Logger
}

// NewScheduler creates a new maintenance scheduler.
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		status: make(map[string]TaskStatus),
		logger: logger,
	}
}

// Register adds a task to the schedule.
func (s *Scheduler) Register(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(task.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		err := task.Run(ctx)

		s.mu.Lock()
		st := TaskStatus{Name: task.Name, LastRun: time.Now()}
		if err != nil {
			st.LastErr = err.Error()
			s.logger.Printf("[Maintenance] Task %s failed: %v", task.Name, err)
		}
		s.status[task.Name] = st
		s.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", task.Name, err)
	}

	s.status[task.Name] = TaskStatus{Name: task.Name}
	s.logger.Printf("[Maintenance] Registered task: %s (%s)", task.Name, task.Schedule)
	return nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the scheduler, waiting for any in-flight task to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// Status returns the last known status of all registered tasks.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, st)
	}
	return out
}
