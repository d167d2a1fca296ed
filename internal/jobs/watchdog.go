package jobs

import (
	"context"
	"log"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/services"
)

// WatchdogJob recovers proposals stuck in accepted/executing past the
// threshold — the execution collaborator crashed, hung, or never picked the
// dispatch up. Reconciliation decides between auto-complete and failure.
type WatchdogJob struct {
	controller *autopilot.Controller
	redis      *services.RedisService
	interval   time.Duration
	threshold  time.Duration
	lastRun    time.Time
}

// NewWatchdogJob creates a new watchdog job.
// interval: how often to run (e.g., 2 minutes)
// threshold: in-flight proposals older than this are considered stuck (e.g., 10 minutes)
func NewWatchdogJob(controller *autopilot.Controller, redis *services.RedisService, interval, threshold time.Duration) *WatchdogJob {
	return &WatchdogJob{
		controller: controller,
		redis:      redis,
		interval:   interval,
		threshold:  threshold,
	}
}

// Run recovers stuck executions.
func (j *WatchdogJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	if j.redis != nil {
		acquired, err := j.redis.AcquireLock(ctx, "sweep-lock:watchdog", "watchdog", j.interval)
		if err != nil || !acquired {
			return nil
		}
		defer func() {
			_, _ = j.redis.ReleaseLock(ctx, "sweep-lock:watchdog", "watchdog")
		}()
	}

	completed, failed, err := j.controller.RecoverStuck(ctx, j.threshold)
	if err != nil {
		log.Printf("❌ [WATCHDOG] Failed to recover stuck executions: %v", err)
		return err
	}

	if completed > 0 || failed > 0 {
		log.Printf("🩺 [WATCHDOG] Recovered %d stuck executions (%d auto-completed, %d failed)",
			completed+failed, completed, failed)
	}
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *WatchdogJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		// First run: 1 minute after startup (give time for server to init)
		return time.Now().Add(1 * time.Minute)
	}
	return j.lastRun.Add(j.interval)
}
