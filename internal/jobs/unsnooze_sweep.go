package jobs

import (
	"context"
	"log"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/services"
)

// UnsnoozeSweepJob returns snoozed proposals whose snoozedUntil has passed
// back to proposed. Idempotent across replicas.
type UnsnoozeSweepJob struct {
	store    autopilot.ProposalStore
	redis    *services.RedisService
	metrics  *services.Metrics
	interval time.Duration
	lastRun  time.Time
}

// NewUnsnoozeSweepJob creates a new unsnooze sweep job
func NewUnsnoozeSweepJob(store autopilot.ProposalStore, redis *services.RedisService, metrics *services.Metrics, interval time.Duration) *UnsnoozeSweepJob {
	return &UnsnoozeSweepJob{
		store:    store,
		redis:    redis,
		metrics:  metrics,
		interval: interval,
	}
}

// Run re-surfaces due snoozed proposals.
func (j *UnsnoozeSweepJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	if j.redis != nil {
		acquired, err := j.redis.AcquireLock(ctx, "sweep-lock:unsnooze", "unsnooze-sweep", j.interval)
		if err != nil || !acquired {
			return nil
		}
		defer func() {
			_, _ = j.redis.ReleaseLock(ctx, "sweep-lock:unsnooze", "unsnooze-sweep")
		}()
	}

	count, err := j.store.UnsnoozeDue(ctx, time.Now())
	if err != nil {
		log.Printf("❌ [UNSNOOZE-SWEEP] Failed to unsnooze proposals: %v", err)
		return err
	}

	if count > 0 {
		log.Printf("⏰ [UNSNOOZE-SWEEP] Re-surfaced %d snoozed proposals", count)
		if j.metrics != nil {
			j.metrics.RecordUnsnoozed(count)
		}
	}
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *UnsnoozeSweepJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now().Add(45 * time.Second)
	}
	return j.lastRun.Add(j.interval)
}
