package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowupStatus represents the state of a followup
type FollowupStatus string

const (
	FollowupStatusPending FollowupStatus = "pending"
	FollowupStatusSent    FollowupStatus = "sent"
	FollowupStatusSkipped FollowupStatus = "skipped"
)

// Followup is a read-only view of a post-meeting followup record.
type Followup struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	MeetingID  *primitive.ObjectID `bson:"meetingId,omitempty" json:"meeting_id,omitempty"`
	ProspectID *primitive.ObjectID `bson:"prospectId,omitempty" json:"prospect_id,omitempty"`

	Status FollowupStatus `bson:"status" json:"status"`
	DueAt  *time.Time     `bson:"dueAt,omitempty" json:"due_at,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}
