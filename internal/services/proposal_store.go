package services

import (
	"context"
	"fmt"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/database"
	"salespilot/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProposalStore handles MongoDB CRUD for proposals. Every transition method
// filters on the expected current status so a lost race surfaces as
// ErrNotFoundOrProcessed instead of a silent overwrite. The partial unique
// index on (userId, dedupeKey) absorbs concurrent duplicate inserts.
type ProposalStore struct {
	collection *mongo.Collection
}

var _ autopilot.ProposalStore = (*ProposalStore)(nil)

// NewProposalStore creates a new proposal store
func NewProposalStore(mongodb *database.MongoDB) *ProposalStore {
	return &ProposalStore{
		collection: mongodb.Collection(database.CollectionProposals),
	}
}

// ownerFilter scopes a query to one owner.
func ownerFilter(owner models.Owner) bson.M {
	return bson.M{
		"userId":         owner.UserID,
		"organizationId": owner.OrganizationID,
	}
}

// Create inserts a proposal in status proposed.
func (s *ProposalStore) Create(ctx context.Context, proposal *models.Proposal) error {
	now := time.Now()
	proposal.CreatedAt = now
	proposal.UpdatedAt = now
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusProposed
	}

	result, err := s.collection.InsertOne(ctx, proposal)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return autopilot.ErrDuplicateProposal
		}
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	proposal.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// GetByID retrieves a proposal by ID, scoped to owner
func (s *ProposalStore) GetByID(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id

	var proposal models.Proposal
	err := s.collection.FindOne(ctx, filter).Decode(&proposal)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, autopilot.ErrNotFoundOrProcessed
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return &proposal, nil
}

// ListByStatus returns an owner's proposals in a status, highest priority
// first with creation time as tiebreaker.
func (s *ProposalStore) ListByStatus(ctx context.Context, owner models.Owner, status models.ProposalStatus, limit int64) ([]models.Proposal, error) {
	filter := ownerFilter(owner)
	filter["status"] = status

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer cursor.Close(ctx)

	var proposals []models.Proposal
	if err := cursor.All(ctx, &proposals); err != nil {
		return nil, fmt.Errorf("failed to decode proposals: %w", err)
	}
	return proposals, nil
}

// ListNonTerminal returns every proposal currently occupying a slot for the
// owner (proposed, accepted, executing or snoozed).
func (s *ProposalStore) ListNonTerminal(ctx context.Context, owner models.Owner) ([]models.Proposal, error) {
	filter := ownerFilter(owner)
	filter["status"] = bson.M{"$in": models.NonTerminalStatuses}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list non-terminal proposals: %w", err)
	}
	defer cursor.Close(ctx)

	var proposals []models.Proposal
	if err := cursor.All(ctx, &proposals); err != nil {
		return nil, fmt.Errorf("failed to decode proposals: %w", err)
	}
	return proposals, nil
}

// NonTerminalDedupeKeys returns the dedupe keys held by the owner's
// non-terminal proposals.
func (s *ProposalStore) NonTerminalDedupeKeys(ctx context.Context, owner models.Owner) (map[string]bool, error) {
	filter := ownerFilter(owner)
	filter["status"] = bson.M{"$in": models.NonTerminalStatuses}

	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"dedupeKey": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load dedupe keys: %w", err)
	}
	defer cursor.Close(ctx)

	keys := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			DedupeKey string `bson:"dedupeKey"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode dedupe key: %w", err)
		}
		keys[doc.DedupeKey] = true
	}
	return keys, cursor.Err()
}

// CompletedTypesByEntity returns, per trigger-entity key, the proposal types
// the owner completed since the given instant.
func (s *ProposalStore) CompletedTypesByEntity(ctx context.Context, owner models.Owner, since time.Time) (map[string]map[models.ProposalType]bool, error) {
	filter := ownerFilter(owner)
	filter["status"] = models.ProposalStatusCompleted
	filter["updatedAt"] = bson.M{"$gte": since}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{
		"type": 1, "prospectId": 1, "meetingId": 1, "researchId": 1, "followupId": 1, "contactId": 1,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to load completed proposals: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]map[models.ProposalType]bool)
	for cursor.Next(ctx) {
		var p models.Proposal
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode completed proposal: %w", err)
		}
		key := p.EntityKey()
		if key == "" {
			continue
		}
		if out[key] == nil {
			out[key] = make(map[models.ProposalType]bool)
		}
		out[key][p.Type] = true
	}
	return out, cursor.Err()
}

// Decide moves proposed → accepted or proposed → declined and stamps
// decidedAt.
func (s *ProposalStore) Decide(ctx context.Context, owner models.Owner, id primitive.ObjectID, to models.ProposalStatus, reason string) (*models.Proposal, error) {
	if to != models.ProposalStatusAccepted && to != models.ProposalStatusDeclined {
		return nil, fmt.Errorf("invalid decision status: %s", to)
	}

	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = models.ProposalStatusProposed

	now := time.Now()
	setFields := bson.M{
		"status":    to,
		"decidedAt": now,
		"updatedAt": now,
	}
	if reason != "" {
		setFields["decisionReason"] = reason
	}

	return s.findOneAndUpdate(ctx, filter, bson.M{"$set": setFields})
}

// Snooze moves proposed → snoozed until the given instant.
func (s *ProposalStore) Snooze(ctx context.Context, owner models.Owner, id primitive.ObjectID, until time.Time, reason string) (*models.Proposal, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = models.ProposalStatusProposed

	now := time.Now()
	setFields := bson.M{
		"status":       models.ProposalStatusSnoozed,
		"snoozedUntil": until,
		"decidedAt":    now,
		"updatedAt":    now,
	}
	if reason != "" {
		setFields["decisionReason"] = reason
	}

	return s.findOneAndUpdate(ctx, filter, bson.M{"$set": setFields})
}

// Retry moves failed → accepted, clearing error and execution timestamps.
func (s *ProposalStore) Retry(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = models.ProposalStatusFailed

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":    models.ProposalStatusAccepted,
			"decidedAt": now,
			"updatedAt": now,
		},
		"$unset": bson.M{
			"error":                "",
			"executionStartedAt":   "",
			"executionCompletedAt": "",
		},
	}

	return s.findOneAndUpdate(ctx, filter, update)
}

// MarkExecuting moves accepted → executing and stamps executionStartedAt.
func (s *ProposalStore) MarkExecuting(ctx context.Context, owner models.Owner, id primitive.ObjectID) error {
	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = models.ProposalStatusAccepted

	now := time.Now()
	result, err := s.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"status":             models.ProposalStatusExecuting,
			"executionStartedAt": now,
			"updatedAt":          now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark proposal executing: %w", err)
	}
	if result.MatchedCount == 0 {
		return autopilot.ErrNotFoundOrProcessed
	}
	return nil
}

// Complete moves the proposal from any of the expected statuses to completed,
// appending artifacts.
func (s *ProposalStore) Complete(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, artifacts []models.ProposalArtifact, markExecutionCompleted bool) error {
	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = bson.M{"$in": from}

	now := time.Now()
	setFields := bson.M{
		"status":    models.ProposalStatusCompleted,
		"updatedAt": now,
	}
	if markExecutionCompleted {
		setFields["executionCompletedAt"] = now
	}

	update := bson.M{"$set": setFields}
	if len(artifacts) > 0 {
		update["$push"] = bson.M{"artifacts": bson.M{"$each": artifacts}}
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to complete proposal: %w", err)
	}
	if result.MatchedCount == 0 {
		return autopilot.ErrNotFoundOrProcessed
	}
	return nil
}

// Fail moves the proposal from any of the expected statuses to failed with
// the given error message.
func (s *ProposalStore) Fail(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, errMsg string, markExecutionCompleted bool) error {
	filter := ownerFilter(owner)
	filter["_id"] = id
	filter["status"] = bson.M{"$in": from}

	now := time.Now()
	setFields := bson.M{
		"status":    models.ProposalStatusFailed,
		"error":     errMsg,
		"updatedAt": now,
	}
	if markExecutionCompleted {
		setFields["executionCompletedAt"] = now
	}

	result, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": setFields})
	if err != nil {
		return fmt.Errorf("failed to fail proposal: %w", err)
	}
	if result.MatchedCount == 0 {
		return autopilot.ErrNotFoundOrProcessed
	}
	return nil
}

// ExpireOverdue transitions every proposed proposal with expiresAt < now to
// expired. Runs across all owners; idempotent.
func (s *ProposalStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.collection.UpdateMany(ctx, bson.M{
		"status":    models.ProposalStatusProposed,
		"expiresAt": bson.M{"$lt": now},
	}, bson.M{
		"$set": bson.M{
			"status":    models.ProposalStatusExpired,
			"updatedAt": now,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire proposals: %w", err)
	}
	return result.ModifiedCount, nil
}

// UnsnoozeDue transitions every snoozed proposal with snoozedUntil < now back
// to proposed. Runs across all owners; idempotent.
func (s *ProposalStore) UnsnoozeDue(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.collection.UpdateMany(ctx, bson.M{
		"status":       models.ProposalStatusSnoozed,
		"snoozedUntil": bson.M{"$lt": now},
	}, bson.M{
		"$set":   bson.M{"status": models.ProposalStatusProposed, "updatedAt": now},
		"$unset": bson.M{"snoozedUntil": ""},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to unsnooze proposals: %w", err)
	}
	return result.ModifiedCount, nil
}

// FindStuckExecutions returns accepted/executing proposals whose decision or
// execution started before the given instant. Runs across all owners.
func (s *ProposalStore) FindStuckExecutions(ctx context.Context, olderThan time.Time) ([]models.Proposal, error) {
	cursor, err := s.collection.Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{
				"status":             models.ProposalStatusExecuting,
				"executionStartedAt": bson.M{"$lt": olderThan},
			},
			bson.M{
				"status":    models.ProposalStatusAccepted,
				"decidedAt": bson.M{"$lt": olderThan},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck executions: %w", err)
	}
	defer cursor.Close(ctx)

	var proposals []models.Proposal
	if err := cursor.All(ctx, &proposals); err != nil {
		return nil, fmt.Errorf("failed to decode stuck proposals: %w", err)
	}
	return proposals, nil
}

// findOneAndUpdate applies a status-guarded update and returns the updated
// document, mapping a guard miss to ErrNotFoundOrProcessed.
func (s *ProposalStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Proposal, error) {
	var proposal models.Proposal
	err := s.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&proposal)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, autopilot.ErrNotFoundOrProcessed
		}
		return nil, fmt.Errorf("failed to update proposal: %w", err)
	}
	return &proposal, nil
}
