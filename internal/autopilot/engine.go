package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salespilot/internal/logging"
	"salespilot/internal/models"

	"github.com/google/uuid"
)

// Locker is the distributed-lock surface the engine uses to avoid
// overlapping runs for one owner. A nil Locker means single-replica mode:
// runs proceed unlocked.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, lockValue string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error)
}

// EngineMetrics receives detection-run observations. The Prometheus
// implementation lives in internal/services.
type EngineMetrics interface {
	RecordDetectionRun(seconds float64)
	RecordProposalCreated(proposalType string)
	RecordDetectorError(detector string)
	RecordDuplicateSkipped()
}

// Notifier receives lifecycle notifications for fan-out to connected
// clients. Optional everywhere it is accepted.
type Notifier interface {
	NotifyProposalCreated(proposal *models.Proposal)
	NotifyProposalCompleted(proposal *models.Proposal)
	NotifyProposalFailed(proposal *models.Proposal)
}

// runLockTTL bounds how long a crashed run can hold an owner's lock.
const runLockTTL = 5 * time.Minute

// RunReport summarizes one detection run.
type RunReport struct {
	RunID      string `json:"run_id"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	Candidates     int `json:"candidates"`
	Admitted       int `json:"admitted"`
	Created        int `json:"created"`
	Duplicates     int `json:"duplicates"`
	DetectorErrors int `json:"detector_errors"`
}

// Engine orchestrates a detection run: build the owner snapshot, evaluate
// every detector, sequence the candidates and persist the survivors. It is
// constructed once at startup and holds no per-run state.
type Engine struct {
	store    ProposalStore
	readers  Readers
	settings SettingsReader

	detectors []Detector

	locker   Locker
	metrics  EngineMetrics
	notifier Notifier

	// completionWindow is the dependency lookback: how long a completed
	// proposal keeps satisfying prerequisites for its entity.
	completionWindow time.Duration
}

// NewEngine creates a detection engine with the full detector catalog.
func NewEngine(store ProposalStore, readers Readers, settings SettingsReader, completionWindow time.Duration) *Engine {
	return &Engine{
		store:            store,
		readers:          readers,
		settings:         settings,
		completionWindow: completionWindow,
		detectors: []Detector{
			NewStartResearchDetector(readers.Prospects, readers.Meetings),
			NewReviewResearchDetector(readers.Research),
			NewPrepareOutreachDetector(readers.Prospects, readers.Outreach),
			NewCreatePrepDetector(readers.Meetings, readers.Preps),
			NewReviewSummaryDetector(readers.Meetings),
			NewSendFollowupDetector(readers.Followups, readers.Meetings),
			NewSyncCRMNotesDetector(readers.Meetings),
			NewConnectCalendarDetector(readers.Meetings),
		},
	}
}

// SetLocker attaches a distributed lock provider (optional).
func (e *Engine) SetLocker(l Locker) { e.locker = l }

// SetMetrics attaches run metrics (optional).
func (e *Engine) SetMetrics(m EngineMetrics) { e.metrics = m }

// SetNotifier attaches the lifecycle notifier (optional).
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// Detectors exposes the catalog (used by tests and the status endpoint).
func (e *Engine) Detectors() []Detector { return e.detectors }

// Run executes one detection pass for an owner. Runs for distinct owners
// are fully independent; overlapping runs for the same owner are prevented
// by the per-owner lock, and racing duplicates are absorbed by the store's
// unique index either way.
func (e *Engine) Run(ctx context.Context, owner models.Owner) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString()}
	logger := logging.WithDetection(report.RunID, owner.UserID)
	start := time.Now()

	settings, err := e.settings.GetSettings(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load autopilot settings: %w", err)
	}
	if !settings.Enabled {
		report.Skipped = true
		report.SkipReason = "autopilot disabled"
		return report, nil
	}

	if e.locker != nil {
		lockKey := "autopilot-run:" + owner.UserID
		acquired, err := e.locker.AcquireLock(ctx, lockKey, report.RunID, runLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !acquired {
			report.Skipped = true
			report.SkipReason = "run already in progress"
			return report, nil
		}
		defer func() {
			_, _ = e.locker.ReleaseLock(ctx, lockKey, report.RunID)
		}()
	}

	oc, pending, err := e.snapshot(ctx, owner, settings)
	if err != nil {
		return nil, err
	}

	candidates := e.detectAll(ctx, oc, report)
	report.Candidates = len(candidates)

	admitted := Sequence(candidates, oc, pending)
	report.Admitted = len(admitted)

	for i := range admitted {
		created, err := e.persist(ctx, oc, &admitted[i])
		if err != nil {
			logger.Error("failed to persist proposal",
				"type", string(admitted[i].Type), "error", err)
			continue
		}
		if created {
			report.Created++
		} else {
			report.Duplicates++
			if e.metrics != nil {
				e.metrics.RecordDuplicateSkipped()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.RecordDetectionRun(time.Since(start).Seconds())
	}
	logger.Info("detection run finished",
		"candidates", report.Candidates,
		"admitted", report.Admitted,
		"created", report.Created,
		"duplicates", report.Duplicates,
		"detector_errors", report.DetectorErrors,
		"duration", time.Since(start).String(),
	)

	return report, nil
}

// snapshot assembles the read-only context a run is evaluated against.
func (e *Engine) snapshot(ctx context.Context, owner models.Owner, settings *models.AutopilotSettings) (*OwnerContext, PendingState, error) {
	keys, err := e.store.NonTerminalDedupeKeys(ctx, owner)
	if err != nil {
		return nil, PendingState{}, fmt.Errorf("failed to snapshot dedupe keys: %w", err)
	}

	now := time.Now().UTC()
	completed, err := e.store.CompletedTypesByEntity(ctx, owner, now.Add(-e.completionWindow))
	if err != nil {
		return nil, PendingState{}, fmt.Errorf("failed to snapshot completed types: %w", err)
	}

	nonTerminal, err := e.store.ListNonTerminal(ctx, owner)
	if err != nil {
		return nil, PendingState{}, fmt.Errorf("failed to list pending proposals: %w", err)
	}

	oc := &OwnerContext{
		Owner:             owner,
		Settings:          settings,
		NonTerminalKeys:   keys,
		CompletedByEntity: completed,
		Now:               now,
	}
	return oc, PendingStateOf(nonTerminal), nil
}

// detectAll evaluates every detector concurrently. Detectors are read-only
// and independent, so one rule's failure (error or panic) is isolated and
// logged while the run continues for all others.
func (e *Engine) detectAll(ctx context.Context, oc *OwnerContext, report *RunReport) []Candidate {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []Candidate
	)

	logger := logging.WithDetection(report.RunID, oc.Owner.UserID)

	for _, det := range e.detectors {
		wg.Add(1)
		go func(det Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("detector panicked",
						"detector", string(det.Type()), "panic", fmt.Sprint(r))
					mu.Lock()
					report.DetectorErrors++
					mu.Unlock()
					if e.metrics != nil {
						e.metrics.RecordDetectorError(string(det.Type()))
					}
				}
			}()

			found, err := det.Detect(ctx, oc)
			if err != nil {
				logger.Warn("detector failed",
					"detector", string(det.Type()), "error", err)
				mu.Lock()
				report.DetectorErrors++
				mu.Unlock()
				if e.metrics != nil {
					e.metrics.RecordDetectorError(string(det.Type()))
				}
				return
			}

			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
		}(det)
	}

	wg.Wait()
	return candidates
}

// persist inserts one admitted candidate. Returns false when the unique
// index absorbed a racing duplicate.
func (e *Engine) persist(ctx context.Context, oc *OwnerContext, c *Candidate) (bool, error) {
	proposal := &models.Proposal{
		UserID:         oc.Owner.UserID,
		OrganizationID: oc.Owner.OrganizationID,
		TriggerRefs:    c.TriggerRefs,
		Type:           c.Type,
		DedupeKey:      c.DedupeKey,
		Status:         models.ProposalStatusProposed,
		Priority:       c.Priority,
		ContextData:    c.ContextData,
		ExpiresAt:      c.ExpiresAt,
	}

	if err := e.store.Create(ctx, proposal); err != nil {
		if errors.Is(err, ErrDuplicateProposal) {
			return false, nil
		}
		return false, err
	}

	if e.metrics != nil {
		e.metrics.RecordProposalCreated(string(c.Type))
	}
	if e.notifier != nil {
		e.notifier.NotifyProposalCreated(proposal)
	}
	return true, nil
}
