package autopilot

import (
	"context"
	"errors"
	"testing"
	"time"

	"salespilot/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testOwner() models.Owner {
	return models.Owner{UserID: "u1", OrganizationID: "org1"}
}

func TestEngineRunCreatesProposals(t *testing.T) {
	store := newMemStore()
	readers := emptyReaders()
	readers.Prospects = &fakeProspects{
		withoutResearch: []models.Prospect{{
			ID:     primitive.NewObjectID(),
			UserID: "u1",
			Name:   "Acme",
			Status: models.ProspectStatusQualified,
		}},
	}

	engine := NewEngine(store, readers, &fakeSettings{}, 7*24*time.Hour)
	report, err := engine.Run(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Skipped {
		t.Fatalf("expected run to proceed, skipped: %s", report.SkipReason)
	}
	if report.Created != 1 {
		t.Fatalf("Created = %d, expected 1", report.Created)
	}

	proposals, _ := store.ListByStatus(context.Background(), testOwner(), models.ProposalStatusProposed, 50)
	if len(proposals) != 1 {
		t.Fatalf("expected 1 stored proposal, got %d", len(proposals))
	}
	if proposals[0].Type != models.ProposalTypeStartResearch {
		t.Errorf("stored type = %s, expected start_research", proposals[0].Type)
	}
	if proposals[0].DedupeKey == "" {
		t.Error("stored proposal has empty dedupe key")
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	readers := emptyReaders()
	readers.Prospects = &fakeProspects{
		withoutResearch: []models.Prospect{{
			ID:     primitive.NewObjectID(),
			UserID: "u1",
			Name:   "Acme",
		}},
	}

	engine := NewEngine(store, readers, &fakeSettings{}, 7*24*time.Hour)
	owner := testOwner()

	if _, err := engine.Run(context.Background(), owner); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	report, err := engine.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if report.Created != 0 {
		t.Errorf("second run Created = %d, expected 0 (same situation already pending)", report.Created)
	}

	nonTerminal, _ := store.ListNonTerminal(context.Background(), owner)
	if len(nonTerminal) != 1 {
		t.Errorf("expected 1 non-terminal proposal after two runs, got %d", len(nonTerminal))
	}
}

func TestEngineRunSkipsWhenDisabled(t *testing.T) {
	settings := models.DefaultAutopilotSettings("u1", "org1")
	settings.Enabled = false

	engine := NewEngine(newMemStore(), emptyReaders(), &fakeSettings{settings: settings}, 7*24*time.Hour)
	report, err := engine.Run(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Skipped {
		t.Fatal("expected run to be skipped when autopilot is disabled")
	}
	if report.SkipReason != "autopilot disabled" {
		t.Errorf("SkipReason = %q, expected %q", report.SkipReason, "autopilot disabled")
	}
}

func TestEngineRunSkipsWhenLocked(t *testing.T) {
	engine := NewEngine(newMemStore(), emptyReaders(), &fakeSettings{}, 7*24*time.Hour)
	engine.SetLocker(&fakeLocker{denied: true})

	report, err := engine.Run(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Skipped {
		t.Fatal("expected run to be skipped while another run holds the lock")
	}
	if report.SkipReason != "run already in progress" {
		t.Errorf("SkipReason = %q, expected %q", report.SkipReason, "run already in progress")
	}
}

func TestEngineDetectorErrorIsIsolated(t *testing.T) {
	store := newMemStore()
	readers := emptyReaders()
	readers.Prospects = &fakeProspects{
		withoutResearch: []models.Prospect{{
			ID:     primitive.NewObjectID(),
			UserID: "u1",
			Name:   "Acme",
		}},
	}
	// The research reader failing must not take down the run.
	readers.Research = &fakeResearch{err: errors.New("research collection unavailable")}

	engine := NewEngine(store, readers, &fakeSettings{}, 7*24*time.Hour)
	report, err := engine.Run(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.DetectorErrors == 0 {
		t.Error("expected at least one detector error reported")
	}
	if report.Created != 1 {
		t.Errorf("Created = %d, expected 1 from the healthy detector", report.Created)
	}
}

func TestEngineConnectCalendarForEmptyAccount(t *testing.T) {
	store := newMemStore()
	readers := emptyReaders()
	readers.Meetings = &fakeMeetings{count: 0}

	engine := NewEngine(store, readers, &fakeSettings{}, 7*24*time.Hour)
	report, err := engine.Run(context.Background(), testOwner())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Created != 1 {
		t.Fatalf("Created = %d, expected 1 setup proposal", report.Created)
	}

	proposals, _ := store.ListByStatus(context.Background(), testOwner(), models.ProposalStatusProposed, 50)
	if proposals[0].Type != models.ProposalTypeConnectCalendar {
		t.Errorf("created type = %s, expected connect_calendar", proposals[0].Type)
	}
}

func TestEnginePrepProposalEscalatesWithUrgency(t *testing.T) {
	store := newMemStore()
	owner := testOwner()
	pid := primitive.NewObjectID()
	meeting := models.Meeting{
		ID:         primitive.NewObjectID(),
		UserID:     "u1",
		Title:      "Acme demo",
		ProspectID: &pid,
		StartsAt:   time.Now().Add(20 * time.Hour),
	}
	meetings := &fakeMeetings{count: 1, upcoming: []models.Meeting{meeting}}

	readers := emptyReaders()
	readers.Meetings = meetings

	engine := NewEngine(store, readers, &fakeSettings{}, 7*24*time.Hour)
	if _, err := engine.Run(context.Background(), owner); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	first, _ := store.ListByStatus(context.Background(), owner, models.ProposalStatusProposed, 50)
	if len(first) != 1 {
		t.Fatalf("expected 1 proposal in the 24h bucket, got %d", len(first))
	}

	// The meeting slides into the 4h bucket. The bucketed dedupe key yields
	// a fresh, higher-priority proposal for the same meeting even though the
	// earlier bucket's proposal is still pending.
	meetings.upcoming[0].StartsAt = time.Now().Add(2 * time.Hour)
	report, err := engine.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Candidates != 1 {
		t.Fatalf("second run Candidates = %d, expected 1 escalated candidate", report.Candidates)
	}
	if report.Created != 1 {
		t.Fatalf("second run Created = %d, expected the escalated proposal created alongside the pending one", report.Created)
	}

	proposals, _ := store.ListByStatus(context.Background(), owner, models.ProposalStatusProposed, 50)
	if len(proposals) != 2 {
		t.Fatalf("expected both bucket proposals pending, got %d", len(proposals))
	}
	var original, escalated models.Proposal
	for _, p := range proposals {
		if p.ID == first[0].ID {
			original = p
		} else {
			escalated = p
		}
	}
	if escalated.DedupeKey == original.DedupeKey {
		t.Error("expected distinct dedupe keys for distinct urgency buckets")
	}
	if escalated.Priority <= original.Priority {
		t.Errorf("escalated priority %d not above original %d", escalated.Priority, original.Priority)
	}

	// Re-running within the same bucket stays idempotent.
	report, err = engine.Run(context.Background(), owner)
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if report.Created != 0 {
		t.Fatalf("third run Created = %d, expected 0", report.Created)
	}
}

func TestEngineRunErrorsWhenSettingsUnavailable(t *testing.T) {
	engine := NewEngine(newMemStore(), emptyReaders(), &fakeSettings{err: errors.New("settings down")}, 7*24*time.Hour)
	if _, err := engine.Run(context.Background(), testOwner()); err == nil {
		t.Fatal("expected error when settings cannot be loaded")
	}
}
