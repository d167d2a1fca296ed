package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// DetectionScheduler runs per-owner detection on each owner's custom cron
// schedule. Owners without a DetectionCron are covered by the global
// detection sweep instead; this scheduler only carries the customized ones.
type DetectionScheduler struct {
	engine   *autopilot.Engine
	settings *SettingsStore

	scheduler gocron.Scheduler
	mu        sync.RWMutex
	jobs      map[string]gocron.Job // userID -> job
}

// NewDetectionScheduler creates a new detection scheduler
func NewDetectionScheduler(engine *autopilot.Engine, settings *SettingsStore) (*DetectionScheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create detection scheduler: %w", err)
	}

	return &DetectionScheduler{
		engine:    engine,
		settings:  settings,
		scheduler: scheduler,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// ValidateCron checks a detection cron expression before it is stored.
func ValidateCron(expression string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expression); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Start loads every owner with a custom schedule and starts the scheduler
func (s *DetectionScheduler) Start(ctx context.Context) error {
	log.Println("⏰ Starting detection scheduler...")

	scheduled, err := s.settings.ListWithDetectionCron(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled owners: %w", err)
	}

	var count int
	for i := range scheduled {
		if err := s.registerJob(&scheduled[i]); err != nil {
			log.Printf("⚠️ Failed to register detection schedule for user %s: %v", scheduled[i].UserID, err)
			continue
		}
		count++
	}

	s.scheduler.Start()
	log.Printf("✅ Detection scheduler started (%d custom schedules loaded)", count)
	return nil
}

// Stop stops the detection scheduler
func (s *DetectionScheduler) Stop() error {
	log.Println("⏹️ Stopping detection scheduler...")
	return s.scheduler.Shutdown()
}

// Reschedule replaces the owner's job after a settings update. An empty or
// disabled schedule removes the job.
func (s *DetectionScheduler) Reschedule(settings *models.AutopilotSettings) error {
	s.unregisterJob(settings.UserID)
	if !settings.Enabled || settings.DetectionCron == "" {
		return nil
	}
	return s.registerJob(settings)
}

// registerJob registers an owner's schedule with the gocron scheduler
func (s *DetectionScheduler) registerJob(settings *models.AutopilotSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tz := settings.Timezone
	if tz == "" {
		tz = "UTC"
	}

	cronWithTZ := fmt.Sprintf("CRON_TZ=%s %s", tz, settings.DetectionCron)
	owner := models.Owner{UserID: settings.UserID, OrganizationID: settings.OrganizationID}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronWithTZ, false),
		gocron.NewTask(func() {
			s.runDetection(owner)
		}),
		gocron.WithName("detection_"+settings.UserID),
	)
	if err != nil {
		return fmt.Errorf("failed to create detection job: %w", err)
	}

	s.jobs[settings.UserID] = job
	log.Printf("📅 Registered detection schedule for user %s (cron: %s)", settings.UserID, settings.DetectionCron)
	return nil
}

// unregisterJob removes an owner's schedule
func (s *DetectionScheduler) unregisterJob(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[userID]
	if !exists {
		return
	}

	if err := s.scheduler.RemoveJob(job.ID()); err != nil {
		log.Printf("⚠️ Failed to remove detection job for user %s: %v", userID, err)
	}
	delete(s.jobs, userID)
}

// runDetection executes one scheduled detection run. Overlap with the sweep
// or a manual trigger is handled by the engine's per-owner lock.
func (s *DetectionScheduler) runDetection(owner models.Owner) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := s.engine.Run(ctx, owner)
	if err != nil {
		log.Printf("⚠️ Scheduled detection failed for user %s: %v", owner.UserID, err)
		return
	}
	if report.Skipped {
		return
	}
	log.Printf("▶️ Scheduled detection for user %s: %d created, %d duplicates", owner.UserID, report.Created, report.Duplicates)
}
