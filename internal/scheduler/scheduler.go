// Package scheduler runs the Bakery's periodic housekeeping: the idle-
// circuit prune tick, configuration backups, and health checks. It is a
// small timer-driven runner, not a cron daemon; anything needing richer
// calendar semantics belongs in the host's cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lqos-tc/bakery/internal/clock"
	"github.com/lqos-tc/bakery/internal/logging"
)

// TaskFunc does the actual work of a scheduled task. The context is
// cancelled on scheduler shutdown or when the task's timeout elapses.
type TaskFunc func(ctx context.Context) error

// Task describes one recurring job.
type Task struct {
	ID          string
	Name        string
	Description string
	Schedule    Schedule
	Func        TaskFunc
	Enabled     bool
	RunOnStart  bool
	Timeout     time.Duration
}

// TaskStatus is a point-in-time snapshot of a task's history.
type TaskStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Enabled      bool          `json:"enabled"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
}

type entry struct {
	task    *Task
	status  TaskStatus
	nextRun time.Time
}

// Scheduler owns a set of tasks and a single timer goroutine that fires
// whichever task is due next. Task functions run in their own goroutines;
// Stop waits for in-flight runs to finish.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// New builds an empty scheduler logging through the given logger.
func New(logger *logging.Logger) *Scheduler {
	base := slog.Default()
	if logger != nil {
		base = logger.Logger
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  base.With("component", "scheduler"),
		wake:    make(chan struct{}, 1),
	}
}

// AddTask registers a task. IDs are unique; a task with a nil schedule or
// function is rejected.
func (s *Scheduler) AddTask(t *Task) error {
	switch {
	case t.ID == "":
		return fmt.Errorf("task ID is required")
	case t.Schedule == nil:
		return fmt.Errorf("task %s has no schedule", t.ID)
	case t.Func == nil:
		return fmt.Errorf("task %s has no function", t.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[t.ID]; dup {
		return fmt.Errorf("task %s already registered", t.ID)
	}

	e := &entry{
		task: t,
		status: TaskStatus{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Enabled:     t.Enabled,
		},
	}
	if t.Enabled {
		e.nextRun = t.Schedule.Next(clock.Now())
		e.status.NextRun = e.nextRun
	}
	s.entries[t.ID] = e
	s.logger.Info("task registered", "id", t.ID, "name", t.Name)
	s.poke()
	return nil
}

// RemoveTask unregisters a task. An in-flight run is allowed to finish.
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("task %s not found", id)
	}
	delete(s.entries, id)
	s.logger.Info("task removed", "id", id)
	return nil
}

// EnableTask flips a task on or off without unregistering it.
func (s *Scheduler) EnableTask(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	e.task.Enabled = enabled
	e.status.Enabled = enabled
	if enabled {
		e.nextRun = e.task.Schedule.Next(clock.Now())
	} else {
		e.nextRun = time.Time{}
	}
	e.status.NextRun = e.nextRun
	s.poke()
	return nil
}

// RunTask fires a task now, outside its schedule.
func (s *Scheduler) RunTask(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	s.launch(e)
	return nil
}

// Status returns every task's snapshot, sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TaskStatusByID returns one task's snapshot.
func (s *Scheduler) TaskStatusByID(id string) (TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return TaskStatus{}, false
	}
	return e.status, true
}

// Start begins the timer loop and fires RunOnStart tasks. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	var onStart []*entry
	for _, e := range s.entries {
		if e.task.Enabled && e.task.RunOnStart {
			onStart = append(onStart, e)
		}
	}
	s.mu.Unlock()

	s.logger.Info("scheduler started")
	for _, e := range onStart {
		s.launch(e)
	}
	go s.loop()
}

// Stop cancels the loop and blocks until in-flight task runs return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// poke wakes the timer loop so it re-arms against a changed task set.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop sleeps until the earliest nextRun, fires everything due, re-arms.
// It wakes early when the task set changes.
func (s *Scheduler) loop() {
	const idleWait = time.Minute
	for {
		wait := idleWait
		if next, ok := s.earliest(); ok {
			wait = time.Until(next)
			if wait < 0 {
				wait = 0
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			s.fireDue(clock.Now())
		}
	}
}

func (s *Scheduler) earliest() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	for _, e := range s.entries {
		if !e.task.Enabled || e.nextRun.IsZero() {
			continue
		}
		if next.IsZero() || e.nextRun.Before(next) {
			next = e.nextRun
		}
	}
	return next, !next.IsZero()
}

// fireDue launches every task whose nextRun has arrived. The next run time
// advances before the task is launched, so a slow task is never double-fired.
func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !e.task.Enabled || e.nextRun.IsZero() || e.nextRun.After(now) {
			continue
		}
		e.nextRun = e.task.Schedule.Next(now)
		e.status.NextRun = e.nextRun
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.launch(e)
	}
}

func (s *Scheduler) launch(e *entry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(e)
	}()
}

func (s *Scheduler) execute(e *entry) {
	t := e.task
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx := parent
	var cancel context.CancelFunc
	if t.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, t.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	start := clock.Now()
	err := t.Func(ctx)
	elapsed := clock.Since(start)

	s.mu.Lock()
	e.status.LastRun = start
	e.status.LastDuration = elapsed
	e.status.RunCount++
	if err != nil {
		e.status.LastError = err.Error()
		e.status.ErrorCount++
	} else {
		e.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("task failed", "id", t.ID, "error", err, "duration", elapsed)
		logging.SchedulerLog("error", "task %s failed after %s: %v", t.ID, elapsed, err)
	} else {
		s.logger.Debug("task completed", "id", t.ID, "duration", elapsed)
		logging.SchedulerLog("info", "task %s completed in %s", t.ID, elapsed)
	}
}
