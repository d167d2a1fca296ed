package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResearchStatus represents the state of a research brief
type ResearchStatus string

const (
	ResearchStatusPending  ResearchStatus = "pending"
	ResearchStatusReady    ResearchStatus = "ready"
	ResearchStatusReviewed ResearchStatus = "reviewed"
)

// ResearchBrief is a read-only view of a generated research brief.
type ResearchBrief struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	ProspectID primitive.ObjectID `bson:"prospectId" json:"prospect_id"`
	Status     ResearchStatus     `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
