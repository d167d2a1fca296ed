package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Meeting is a read-only view of a synced calendar meeting.
type Meeting struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	Title         string              `bson:"title" json:"title"`
	ProspectID    *primitive.ObjectID `bson:"prospectId,omitempty" json:"prospect_id,omitempty"`
	AttendeeCount int                 `bson:"attendeeCount" json:"attendee_count"`

	StartsAt time.Time `bson:"startsAt" json:"starts_at"`
	EndsAt   time.Time `bson:"endsAt" json:"ends_at"`

	// Set by the ingestion pipeline when the recording transcript and the
	// generated summary become available.
	TranscriptReady bool `bson:"transcriptReady" json:"transcript_ready"`
	SummaryReady    bool `bson:"summaryReady" json:"summary_ready"`
	SummaryReviewed bool `bson:"summaryReviewed" json:"summary_reviewed"`
	NotesSynced     bool `bson:"notesSynced" json:"notes_synced"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
