package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ProposalStatus
		to      ProposalStatus
		allowed bool
	}{
		{"accept", ProposalStatusProposed, ProposalStatusAccepted, true},
		{"decline", ProposalStatusProposed, ProposalStatusDeclined, true},
		{"snooze", ProposalStatusProposed, ProposalStatusSnoozed, true},
		{"expire", ProposalStatusProposed, ProposalStatusExpired, true},
		{"inline complete", ProposalStatusProposed, ProposalStatusCompleted, true},
		{"start execution", ProposalStatusAccepted, ProposalStatusExecuting, true},
		{"reconcile accepted", ProposalStatusAccepted, ProposalStatusCompleted, true},
		{"watchdog before start", ProposalStatusAccepted, ProposalStatusFailed, true},
		{"execution success", ProposalStatusExecuting, ProposalStatusCompleted, true},
		{"execution failure", ProposalStatusExecuting, ProposalStatusFailed, true},
		{"unsnooze", ProposalStatusSnoozed, ProposalStatusProposed, true},
		{"retry", ProposalStatusFailed, ProposalStatusAccepted, true},

		{"proposed straight to executing", ProposalStatusProposed, ProposalStatusExecuting, false},
		{"proposed to failed", ProposalStatusProposed, ProposalStatusFailed, false},
		{"snoozed to accepted", ProposalStatusSnoozed, ProposalStatusAccepted, false},
		{"snoozed to declined", ProposalStatusSnoozed, ProposalStatusDeclined, false},
		{"revive completed", ProposalStatusCompleted, ProposalStatusProposed, false},
		{"revive declined", ProposalStatusDeclined, ProposalStatusProposed, false},
		{"revive expired", ProposalStatusExpired, ProposalStatusProposed, false},
		{"failed back to proposed", ProposalStatusFailed, ProposalStatusProposed, false},
		{"executing back to accepted", ProposalStatusExecuting, ProposalStatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, expected %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []ProposalStatus{
		ProposalStatusCompleted,
		ProposalStatusDeclined,
		ProposalStatusExpired,
		ProposalStatusFailed,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, expected true", s)
		}
	}

	active := []ProposalStatus{
		ProposalStatusProposed,
		ProposalStatusAccepted,
		ProposalStatusExecuting,
		ProposalStatusSnoozed,
	}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, expected false", s)
		}
	}
}

func TestNonTerminalStatusesMatchIsTerminal(t *testing.T) {
	for _, s := range NonTerminalStatuses {
		if s.IsTerminal() {
			t.Errorf("%s is in NonTerminalStatuses but IsTerminal() is true", s)
		}
	}
}

func TestEntityKeyPrecedence(t *testing.T) {
	meeting := primitive.NewObjectID()
	prospect := primitive.NewObjectID()
	research := primitive.NewObjectID()
	followup := primitive.NewObjectID()
	contact := primitive.NewObjectID()

	tests := []struct {
		name     string
		refs     TriggerRefs
		expected string
	}{
		{"empty", TriggerRefs{}, ""},
		{"meeting wins over prospect", TriggerRefs{MeetingID: &meeting, ProspectID: &prospect}, "meeting:" + meeting.Hex()},
		{"prospect wins over research", TriggerRefs{ProspectID: &prospect, ResearchID: &research}, "prospect:" + prospect.Hex()},
		{"research wins over followup", TriggerRefs{ResearchID: &research, FollowupID: &followup}, "research:" + research.Hex()},
		{"followup wins over contact", TriggerRefs{FollowupID: &followup, ContactID: &contact}, "followup:" + followup.Hex()},
		{"contact alone", TriggerRefs{ContactID: &contact}, "contact:" + contact.Hex()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.refs.EntityKey(); got != tt.expected {
				t.Errorf("EntityKey() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestDefaultAutopilotSettings(t *testing.T) {
	s := DefaultAutopilotSettings("u1", "org1")

	if !s.Enabled {
		t.Error("expected autopilot enabled by default")
	}
	if s.OutreachCooldownDays != 14 {
		t.Errorf("OutreachCooldownDays = %d, expected 14", s.OutreachCooldownDays)
	}
	if s.PrepReminderHours != 24 {
		t.Errorf("PrepReminderHours = %d, expected 24", s.PrepReminderHours)
	}
	if s.MaxConcurrentProposals != 3 {
		t.Errorf("MaxConcurrentProposals = %d, expected 3", s.MaxConcurrentProposals)
	}
	if s.UserID != "u1" || s.OrganizationID != "org1" {
		t.Errorf("owner = (%s, %s), expected (u1, org1)", s.UserID, s.OrganizationID)
	}
}
