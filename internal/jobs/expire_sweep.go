package jobs

import (
	"context"
	"log"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/services"
)

// ExpireSweepJob transitions proposed proposals past their expiresAt to
// expired. The underlying update is idempotent, so overlapping replicas are
// harmless; the Redis lock just avoids redundant work.
type ExpireSweepJob struct {
	store    autopilot.ProposalStore
	redis    *services.RedisService
	metrics  *services.Metrics
	interval time.Duration
	lastRun  time.Time
}

// NewExpireSweepJob creates a new expire sweep job
func NewExpireSweepJob(store autopilot.ProposalStore, redis *services.RedisService, metrics *services.Metrics, interval time.Duration) *ExpireSweepJob {
	return &ExpireSweepJob{
		store:    store,
		redis:    redis,
		metrics:  metrics,
		interval: interval,
	}
}

// Run expires overdue proposals.
func (j *ExpireSweepJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	if j.redis != nil {
		acquired, err := j.redis.AcquireLock(ctx, "sweep-lock:expire", "expire-sweep", j.interval)
		if err != nil || !acquired {
			return nil
		}
		defer func() {
			_, _ = j.redis.ReleaseLock(ctx, "sweep-lock:expire", "expire-sweep")
		}()
	}

	count, err := j.store.ExpireOverdue(ctx, time.Now())
	if err != nil {
		log.Printf("❌ [EXPIRE-SWEEP] Failed to expire proposals: %v", err)
		return err
	}

	if count > 0 {
		log.Printf("🧹 [EXPIRE-SWEEP] Expired %d overdue proposals", count)
		if j.metrics != nil {
			j.metrics.RecordExpired(count)
		}
	}
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *ExpireSweepJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		return time.Now().Add(30 * time.Second)
	}
	return j.lastRun.Add(j.interval)
}
