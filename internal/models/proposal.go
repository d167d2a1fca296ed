package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProposalType identifies the kind of next action a proposal suggests.
// The catalog is closed: every type has exactly one detector, its own
// dependency edges, and a sequencing class. Do not reuse a type for an
// unrelated purpose — add a new variant instead.
type ProposalType string

const (
	ProposalTypeStartResearch        ProposalType = "start_research"
	ProposalTypeReviewResearch       ProposalType = "review_research"
	ProposalTypePrepareOutreach      ProposalType = "prepare_outreach"
	ProposalTypeCreatePrep           ProposalType = "create_prep"
	ProposalTypeReviewMeetingSummary ProposalType = "review_meeting_summary"
	ProposalTypeSendFollowupEmail    ProposalType = "send_followup_email"
	ProposalTypeSyncCRMNotes         ProposalType = "sync_crm_notes"
	ProposalTypeConnectCalendar      ProposalType = "connect_calendar"
)

// AllProposalTypes lists every type in the catalog.
var AllProposalTypes = []ProposalType{
	ProposalTypeStartResearch,
	ProposalTypeReviewResearch,
	ProposalTypePrepareOutreach,
	ProposalTypeCreatePrep,
	ProposalTypeReviewMeetingSummary,
	ProposalTypeSendFollowupEmail,
	ProposalTypeSyncCRMNotes,
	ProposalTypeConnectCalendar,
}

// ProposalStatus represents the lifecycle state of a proposal
type ProposalStatus string

const (
	ProposalStatusProposed  ProposalStatus = "proposed"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusExecuting ProposalStatus = "executing"
	ProposalStatusSnoozed   ProposalStatus = "snoozed"
	ProposalStatusCompleted ProposalStatus = "completed"
	ProposalStatusDeclined  ProposalStatus = "declined"
	ProposalStatusExpired   ProposalStatus = "expired"
	ProposalStatusFailed    ProposalStatus = "failed"
)

// NonTerminalStatuses are the statuses that block re-creation of the same
// dedupe key. The partial unique index on (userId, dedupeKey) filters on
// exactly this set.
var NonTerminalStatuses = []ProposalStatus{
	ProposalStatusProposed,
	ProposalStatusAccepted,
	ProposalStatusExecuting,
	ProposalStatusSnoozed,
}

// validTransitions defines the allowed proposal status transitions.
// Any transition not listed here is invalid and must be rejected.
// completed, declined and expired are terminal; failed may only be
// revived through an explicit retry.
var validTransitions = map[ProposalStatus]map[ProposalStatus]bool{
	ProposalStatusProposed: {
		ProposalStatusAccepted:  true,
		ProposalStatusDeclined:  true,
		ProposalStatusSnoozed:   true,
		ProposalStatusExpired:   true,
		ProposalStatusCompleted: true, // inline completion or reconciliation
	},
	ProposalStatusAccepted: {
		ProposalStatusExecuting: true,
		ProposalStatusCompleted: true, // inline completion or watchdog reconciliation
		ProposalStatusFailed:    true, // watchdog timeout before execution started
	},
	ProposalStatusExecuting: {
		ProposalStatusCompleted: true,
		ProposalStatusFailed:    true,
	},
	ProposalStatusSnoozed: {
		ProposalStatusProposed: true, // unsnooze sweep only
	},
	ProposalStatusFailed: {
		ProposalStatusAccepted: true, // explicit retry only
	},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to ProposalStatus) bool {
	allowed, ok := validTransitions[from]
	return ok && allowed[to]
}

// IsTerminal returns true if the status is final. failed counts as terminal:
// it does not block re-creation of the same dedupe key, and only an explicit
// retry revives the document itself.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case ProposalStatusCompleted, ProposalStatusDeclined, ProposalStatusExpired, ProposalStatusFailed:
		return true
	}
	return false
}

// Proposal is an engine-generated suggestion of a next action for an owner.
// It is created by the detection engine and mutated only by the lifecycle
// controller, the watchdog and the sweep jobs. Proposals are never deleted
// by the engine.
type Proposal struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	Type      ProposalType `bson:"type" json:"type"`
	DedupeKey string       `bson:"dedupeKey" json:"dedupe_key"`

	Status ProposalStatus `bson:"status" json:"status"`

	// Priority is set at creation and immutable thereafter. A changed
	// situation is expressed by a fresh proposal with a new dedupe key,
	// never by mutating this field.
	Priority int `bson:"priority" json:"priority"`

	TriggerRefs `bson:",inline"`

	// ContextData is an opaque payload consumed by the execution
	// collaborator. The engine never interprets it.
	ContextData map[string]interface{} `bson:"contextData,omitempty" json:"context_data,omitempty"`

	ExpiresAt    *time.Time `bson:"expiresAt,omitempty" json:"expires_at,omitempty"`
	SnoozedUntil *time.Time `bson:"snoozedUntil,omitempty" json:"snoozed_until,omitempty"`

	DecisionReason string `bson:"decisionReason,omitempty" json:"decision_reason,omitempty"`

	Artifacts []ProposalArtifact `bson:"artifacts,omitempty" json:"artifacts,omitempty"`
	Error     string             `bson:"error,omitempty" json:"error,omitempty"`

	CreatedAt            time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt            time.Time  `bson:"updatedAt" json:"updated_at"`
	DecidedAt            *time.Time `bson:"decidedAt,omitempty" json:"decided_at,omitempty"`
	ExecutionStartedAt   *time.Time `bson:"executionStartedAt,omitempty" json:"execution_started_at,omitempty"`
	ExecutionCompletedAt *time.Time `bson:"executionCompletedAt,omitempty" json:"execution_completed_at,omitempty"`
}

// ProposalArtifact records an outcome attached on completion.
type ProposalArtifact struct {
	Type       string `bson:"type" json:"type"` // "research","prep","email","note","auto_completed","completed_inline"
	ArtifactID string `bson:"artifactId,omitempty" json:"artifact_id,omitempty"`
	Note       string `bson:"note,omitempty" json:"note,omitempty"`
}

// TriggerRefs identifies the domain entities that caused a proposal to be
// generated. At most one ref per axis is non-nil.
type TriggerRefs struct {
	ProspectID *primitive.ObjectID `bson:"prospectId,omitempty" json:"prospect_id,omitempty"`
	MeetingID  *primitive.ObjectID `bson:"meetingId,omitempty" json:"meeting_id,omitempty"`
	ResearchID *primitive.ObjectID `bson:"researchId,omitempty" json:"research_id,omitempty"`
	FollowupID *primitive.ObjectID `bson:"followupId,omitempty" json:"followup_id,omitempty"`
	ContactID  *primitive.ObjectID `bson:"contactId,omitempty" json:"contact_id,omitempty"`
}

// EntityKey resolves the single trigger-entity key using a fixed precedence:
// meeting > prospect > research > followup > contact. Dependency lookups and
// completion bookkeeping are keyed on this value.
func (r TriggerRefs) EntityKey() string {
	switch {
	case r.MeetingID != nil:
		return "meeting:" + r.MeetingID.Hex()
	case r.ProspectID != nil:
		return "prospect:" + r.ProspectID.Hex()
	case r.ResearchID != nil:
		return "research:" + r.ResearchID.Hex()
	case r.FollowupID != nil:
		return "followup:" + r.FollowupID.Hex()
	case r.ContactID != nil:
		return "contact:" + r.ContactID.Hex()
	}
	return ""
}

// Owner scopes proposals and settings to a user within an organization.
type Owner struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}
