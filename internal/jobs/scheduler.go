package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"salespilot/internal/logging"
)

// Job is one background maintenance task. Implementations own their cadence
// through GetNextRunTime and must tolerate being re-run: every sweep is
// idempotent against the store.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobScheduler drives the sweep jobs on per-job timers. Sweeps are
// fixed-interval and owner-agnostic, so a timer per job is enough; per-owner
// cron schedules live in the detection scheduler instead.
type JobScheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	lastRun map[string]time.Time
	lastErr map[string]string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewJobScheduler creates an empty scheduler. Jobs are registered before
// Start; registering after Start has no effect until a restart.
func NewJobScheduler() *JobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:    make(map[string]Job),
		timers:  make(map[string]*time.Timer),
		lastRun: make(map[string]time.Time),
		lastErr: make(map[string]string),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job under a stable name. The name keys status reporting
// and RunNow lookups.
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	logging.WithJob(name).Debug("sweep job registered")
}

// Start schedules every registered job at its own next-run time.
func (s *JobScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.running = true
	slog.Info("starting sweep scheduler", "jobs", len(s.jobs))

	for name, job := range s.jobs {
		s.scheduleJob(name, job)
	}

	return nil
}

// scheduleJob arms the timer for one job. Caller holds s.mu.
func (s *JobScheduler) scheduleJob(name string, job Job) {
	nextRun := job.GetNextRunTime()
	duration := time.Until(nextRun)

	logging.WithJob(name).Debug("sweep scheduled",
		"next_run", nextRun.Format(time.RFC3339))

	s.timers[name] = time.AfterFunc(duration, func() {
		s.runJob(name, job)
	})
}

// runJob executes a job once, records the outcome and re-arms its timer.
func (s *JobScheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	logger := logging.WithJob(name)
	start := time.Now()

	err := job.Run(s.ctx)

	s.mu.Lock()
	s.lastRun[name] = start
	if err != nil {
		s.lastErr[name] = err.Error()
	} else {
		delete(s.lastErr, name)
	}
	if s.running {
		s.scheduleJob(name, job)
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("sweep failed", "error", err, "duration", time.Since(start).String())
		return
	}
	logger.Debug("sweep finished", "duration", time.Since(start).String())
}

// Stop disarms all timers, cancels the shared context and waits for any
// in-flight job to drain.
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	slog.Info("stopping sweep scheduler")
	s.running = false

	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)

	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	slog.Info("sweep scheduler stopped")
}

// RunNow runs one job immediately, outside its schedule. An unknown name is
// reported but not an error, so the manual-trigger endpoint stays forgiving.
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		slog.Warn("unknown sweep job", "job", name)
		return nil
	}

	err := job.Run(s.ctx)

	s.mu.Lock()
	s.lastRun[name] = time.Now()
	if err != nil {
		s.lastErr[name] = err.Error()
	} else {
		delete(s.lastErr, name)
	}
	s.mu.Unlock()

	return err
}

// GetStatus reports every job's next run and the outcome of its last run.
func (s *JobScheduler) GetStatus() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]JobStatus)
	for name, job := range s.jobs {
		st := JobStatus{
			Name:        name,
			NextRunTime: job.GetNextRunTime(),
			LastError:   s.lastErr[name],
		}
		if last, ok := s.lastRun[name]; ok {
			st.LastRunTime = &last
		}
		status[name] = st
	}

	return status
}

// JobStatus is one job's entry in the status report.
type JobStatus struct {
	Name        string     `json:"name"`
	NextRunTime time.Time  `json:"next_run_time"`
	LastRunTime *time.Time `json:"last_run_time,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}
