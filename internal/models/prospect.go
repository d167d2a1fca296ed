package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProspectStatus represents the qualification state of a prospect
type ProspectStatus string

const (
	ProspectStatusLead      ProspectStatus = "lead"
	ProspectStatusQualified ProspectStatus = "qualified"
	ProspectStatusCustomer  ProspectStatus = "customer"
	ProspectStatusLost      ProspectStatus = "lost"
)

// Prospect is a read-only view of a pipeline prospect. The engine depends
// only on existence, status, linked ids and timestamps.
type Prospect struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	Name    string `bson:"name" json:"name"`
	Company string `bson:"company,omitempty" json:"company,omitempty"`

	Status    ProspectStatus `bson:"status" json:"status"`
	DealValue float64        `bson:"dealValue,omitempty" json:"deal_value,omitempty"`

	HasResearch bool `bson:"hasResearch" json:"has_research"`

	LastContactedAt *time.Time `bson:"lastContactedAt,omitempty" json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updated_at"`
}
