package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OutreachStatus represents the state of an outreach message
type OutreachStatus string

const (
	OutreachStatusDraft OutreachStatus = "draft"
	OutreachStatusSent  OutreachStatus = "sent"
)

// OutreachMessage is a read-only view of an outreach message.
type OutreachMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	ProspectID primitive.ObjectID `bson:"prospectId" json:"prospect_id"`
	Status     OutreachStatus     `bson:"status" json:"status"`
	SentAt     *time.Time         `bson:"sentAt,omitempty" json:"sent_at,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}
