package autopilot

import (
	"context"
	"time"

	"salespilot/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProposalStore is the persistence abstraction the engine writes through.
// The Mongo implementation lives in internal/services; tests use an
// in-memory fake. All transition methods are guarded by the expected current
// status and return ErrNotFoundOrProcessed when the guard fails.
type ProposalStore interface {
	// Create inserts a proposal in status proposed. Returns
	// ErrDuplicateProposal when a non-terminal proposal with the same
	// (owner, dedupeKey) exists.
	Create(ctx context.Context, proposal *models.Proposal) error

	GetByID(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error)
	ListByStatus(ctx context.Context, owner models.Owner, status models.ProposalStatus, limit int64) ([]models.Proposal, error)
	ListNonTerminal(ctx context.Context, owner models.Owner) ([]models.Proposal, error)

	// NonTerminalDedupeKeys returns the set of dedupe keys currently held
	// by non-terminal proposals for the owner (the detectors' idempotence
	// pre-check).
	NonTerminalDedupeKeys(ctx context.Context, owner models.Owner) (map[string]bool, error)

	// CompletedTypesByEntity returns, per trigger-entity key, the proposal
	// types completed since the given instant (the dependency lookback
	// window).
	CompletedTypesByEntity(ctx context.Context, owner models.Owner, since time.Time) (map[string]map[models.ProposalType]bool, error)

	// Decide moves proposed → accepted or proposed → declined and stamps
	// decidedAt.
	Decide(ctx context.Context, owner models.Owner, id primitive.ObjectID, to models.ProposalStatus, reason string) (*models.Proposal, error)

	// Snooze moves proposed → snoozed and records the due instant.
	Snooze(ctx context.Context, owner models.Owner, id primitive.ObjectID, until time.Time, reason string) (*models.Proposal, error)

	// Retry moves failed → accepted, clearing error and execution
	// timestamps.
	Retry(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error)

	// MarkExecuting moves accepted → executing and stamps
	// executionStartedAt. Re-delivery onto an already-executing proposal
	// fails the guard, which callers treat as a no-op.
	MarkExecuting(ctx context.Context, owner models.Owner, id primitive.ObjectID) error

	// Complete moves the proposal from any of the expected statuses to
	// completed, appending artifacts. markExecutionCompleted stamps
	// executionCompletedAt (only for proposals that went through dispatch).
	Complete(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, artifacts []models.ProposalArtifact, markExecutionCompleted bool) error

	// Fail moves the proposal from any of the expected statuses to failed
	// with the given error message.
	Fail(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, errMsg string, markExecutionCompleted bool) error

	// ExpireOverdue transitions every proposed proposal with
	// expiresAt < now to expired. Idempotent. Returns the count changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// UnsnoozeDue transitions every snoozed proposal with
	// snoozedUntil < now back to proposed and clears snoozedUntil.
	// Idempotent. Returns the count changed.
	UnsnoozeDue(ctx context.Context, now time.Time) (int64, error)

	// FindStuckExecutions returns accepted/executing proposals whose
	// decision or execution started before the given instant.
	FindStuckExecutions(ctx context.Context, olderThan time.Time) ([]models.Proposal, error)
}

// ProspectReader provides the read-only prospect queries detectors and
// reconciliation need.
type ProspectReader interface {
	GetProspect(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Prospect, error)
	ListProspectsWithoutResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.Prospect, error)
	ListQualifiedSilentSince(ctx context.Context, owner models.Owner, cutoff time.Time, limit int64) ([]models.Prospect, error)
}

// MeetingReader provides the read-only meeting queries.
type MeetingReader interface {
	GetMeeting(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Meeting, error)
	ListUpcomingMeetings(ctx context.Context, owner models.Owner, within time.Duration, limit int64) ([]models.Meeting, error)
	ListEndedWithTranscript(ctx context.Context, owner models.Owner, since time.Time, limit int64) ([]models.Meeting, error)
	CountMeetings(ctx context.Context, owner models.Owner) (int64, error)
}

// ResearchReader provides the read-only research-brief queries.
type ResearchReader interface {
	ListReadyResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.ResearchBrief, error)
	ResearchByProspect(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*models.ResearchBrief, error)
}

// OutreachReader provides the read-only outreach queries.
type OutreachReader interface {
	LastOutreachSentAt(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*time.Time, error)
}

// PrepReader provides the read-only meeting-prep queries.
type PrepReader interface {
	PrepExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error)
}

// FollowupReader provides the read-only followup queries.
type FollowupReader interface {
	GetFollowup(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Followup, error)
	ListDueFollowups(ctx context.Context, owner models.Owner, now time.Time, limit int64) ([]models.Followup, error)
	SentFollowupExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error)
}

// SettingsReader returns the owner's autopilot settings, falling back to
// defaults for owners that never customized them.
type SettingsReader interface {
	GetSettings(ctx context.Context, owner models.Owner) (*models.AutopilotSettings, error)
}

// Readers bundles every domain collaborator the detectors and the
// reconciliation logic read from.
type Readers struct {
	Prospects ProspectReader
	Meetings  MeetingReader
	Research  ResearchReader
	Outreach  OutreachReader
	Preps     PrepReader
	Followups FollowupReader
}
