package jobs

import (
	"context"
	"log"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/services"
)

// DetectionSweepJob runs a detection pass for every enabled owner on a fixed
// interval. Owners with a custom DetectionCron are also covered — the
// engine's per-owner lock absorbs the overlap.
type DetectionSweepJob struct {
	engine   *autopilot.Engine
	settings *services.SettingsStore
	redis    *services.RedisService
	interval time.Duration
	lastRun  time.Time
}

// NewDetectionSweepJob creates a new detection sweep job
func NewDetectionSweepJob(engine *autopilot.Engine, settings *services.SettingsStore, redis *services.RedisService, interval time.Duration) *DetectionSweepJob {
	return &DetectionSweepJob{
		engine:   engine,
		settings: settings,
		redis:    redis,
		interval: interval,
	}
}

// Run executes detection for all enabled owners, sequentially. One owner's
// failure never blocks the rest.
func (j *DetectionSweepJob) Run(ctx context.Context) error {
	j.lastRun = time.Now()

	if j.redis != nil {
		acquired, err := j.redis.AcquireLock(ctx, "sweep-lock:detection", "detection-sweep", j.interval)
		if err != nil || !acquired {
			return nil
		}
		defer func() {
			_, _ = j.redis.ReleaseLock(ctx, "sweep-lock:detection", "detection-sweep")
		}()
	}

	owners, err := j.settings.ListEnabledOwners(ctx)
	if err != nil {
		log.Printf("❌ [DETECTION-SWEEP] Failed to list enabled owners: %v", err)
		return err
	}

	var created, failures int
	for _, owner := range owners {
		report, err := j.engine.Run(ctx, owner)
		if err != nil {
			log.Printf("⚠️ [DETECTION-SWEEP] Detection failed for user %s: %v", owner.UserID, err)
			failures++
			continue
		}
		created += report.Created
	}

	if len(owners) > 0 {
		log.Printf("🔍 [DETECTION-SWEEP] Swept %d owners: %d proposals created, %d failures",
			len(owners), created, failures)
	}
	return nil
}

// GetNextRunTime returns when this job should next execute.
func (j *DetectionSweepJob) GetNextRunTime() time.Time {
	if j.lastRun.IsZero() {
		// First run: 2 minutes after startup
		return time.Now().Add(2 * time.Minute)
	}
	return j.lastRun.Add(j.interval)
}
