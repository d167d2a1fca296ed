package jobs

import (
	"context"
	"testing"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/models"
)

// sweepStore stubs just the sweep surface of the proposal store, backed by a
// plain slice so the sweeps mutate real state. Embedding the interface keeps
// the stub small; untouched methods panic if called.
type sweepStore struct {
	autopilot.ProposalStore

	proposals []models.Proposal

	expireCalls   int
	unsnoozeCalls int
}

func (s *sweepStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.expireCalls++
	var n int64
	for i := range s.proposals {
		p := &s.proposals[i]
		if p.Status == models.ProposalStatusProposed && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.Status = models.ProposalStatusExpired
			n++
		}
	}
	return n, nil
}

func (s *sweepStore) UnsnoozeDue(ctx context.Context, now time.Time) (int64, error) {
	s.unsnoozeCalls++
	var n int64
	for i := range s.proposals {
		p := &s.proposals[i]
		if p.Status == models.ProposalStatusSnoozed && p.SnoozedUntil != nil && p.SnoozedUntil.Before(now) {
			p.Status = models.ProposalStatusProposed
			p.SnoozedUntil = nil
			n++
		}
	}
	return n, nil
}

func (s *sweepStore) statuses() []models.ProposalStatus {
	out := make([]models.ProposalStatus, len(s.proposals))
	for i := range s.proposals {
		out[i] = s.proposals[i].Status
	}
	return out
}

func overdueStore() *sweepStore {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	return &sweepStore{proposals: []models.Proposal{
		{Status: models.ProposalStatusProposed, ExpiresAt: &past},
		{Status: models.ProposalStatusProposed, ExpiresAt: &past},
		{Status: models.ProposalStatusProposed, ExpiresAt: &future},
	}}
}

func TestExpireSweepRunsWithoutRedis(t *testing.T) {
	store := overdueStore()
	job := NewExpireSweepJob(store, nil, nil, 5*time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.expireCalls != 1 {
		t.Errorf("ExpireOverdue called %d times, expected 1", store.expireCalls)
	}
	if got := store.statuses(); got[0] != models.ProposalStatusExpired ||
		got[1] != models.ProposalStatusExpired ||
		got[2] != models.ProposalStatusProposed {
		t.Errorf("statuses after sweep = %v, expected the two overdue proposals expired", got)
	}
}

func TestExpireSweepIsIdempotent(t *testing.T) {
	store := overdueStore()
	job := NewExpireSweepJob(store, nil, nil, 5*time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	after := store.statuses()

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	for i, st := range store.statuses() {
		if st != after[i] {
			t.Errorf("proposal %d status changed on second sweep: %s -> %s", i, after[i], st)
		}
	}
}

func TestExpireSweepNextRunTime(t *testing.T) {
	job := NewExpireSweepJob(&sweepStore{}, nil, nil, 5*time.Minute)

	first := job.GetNextRunTime()
	if until := time.Until(first); until > time.Minute {
		t.Errorf("first run scheduled %v out, expected within a minute of startup", until)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	next := job.GetNextRunTime()
	if until := time.Until(next); until < 4*time.Minute || until > 5*time.Minute {
		t.Errorf("next run %v out, expected about one interval", until)
	}
}

func TestUnsnoozeSweepRunsWithoutRedis(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &sweepStore{proposals: []models.Proposal{
		{Status: models.ProposalStatusSnoozed, SnoozedUntil: &past},
	}}
	job := NewUnsnoozeSweepJob(store, nil, nil, 5*time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.unsnoozeCalls != 1 {
		t.Errorf("UnsnoozeDue called %d times, expected 1", store.unsnoozeCalls)
	}
	if store.proposals[0].Status != models.ProposalStatusProposed {
		t.Errorf("status = %s, expected proposed after unsnooze", store.proposals[0].Status)
	}
	if store.proposals[0].SnoozedUntil != nil {
		t.Error("expected snoozedUntil cleared on unsnooze")
	}
}

func TestUnsnoozeSweepIsIdempotent(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	store := &sweepStore{proposals: []models.Proposal{
		{Status: models.ProposalStatusSnoozed, SnoozedUntil: &past},
		{Status: models.ProposalStatusSnoozed, SnoozedUntil: &future},
	}}
	job := NewUnsnoozeSweepJob(store, nil, nil, 5*time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	after := store.statuses()

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	for i, st := range store.statuses() {
		if st != after[i] {
			t.Errorf("proposal %d status changed on second sweep: %s -> %s", i, after[i], st)
		}
	}
	if store.proposals[1].SnoozedUntil == nil {
		t.Error("still-snoozed proposal lost its snoozedUntil")
	}
}

func TestSchedulerRunNow(t *testing.T) {
	store := &sweepStore{}
	scheduler := NewJobScheduler()
	scheduler.Register("expire_sweep", NewExpireSweepJob(store, nil, nil, time.Hour))

	if err := scheduler.RunNow("expire_sweep"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if store.expireCalls != 1 {
		t.Errorf("ExpireOverdue called %d times, expected 1", store.expireCalls)
	}

	// Unknown jobs are reported, not fatal.
	if err := scheduler.RunNow("missing"); err != nil {
		t.Errorf("RunNow for unknown job errored: %v", err)
	}
}

func TestSchedulerStatus(t *testing.T) {
	scheduler := NewJobScheduler()
	scheduler.Register("expire_sweep", NewExpireSweepJob(&sweepStore{}, nil, nil, time.Hour))

	status := scheduler.GetStatus()
	if len(status) != 1 {
		t.Fatalf("expected 1 job in status, got %d", len(status))
	}
	st, ok := status["expire_sweep"]
	if !ok {
		t.Fatal("expected expire_sweep in status")
	}
	if st.LastRunTime != nil {
		t.Error("expected no last run before the job has ever run")
	}

	if err := scheduler.RunNow("expire_sweep"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	st = scheduler.GetStatus()["expire_sweep"]
	if st.LastRunTime == nil {
		t.Error("expected last run recorded after RunNow")
	}
	if st.LastError != "" {
		t.Errorf("LastError = %q, expected empty on success", st.LastError)
	}
}
