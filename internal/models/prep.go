package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeetingPrep is a read-only view of a generated meeting-prep document.
type MeetingPrep struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	MeetingID primitive.ObjectID `bson:"meetingId" json:"meeting_id"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}
