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

// Domain read stores. The engine only ever reads these collections — they
// are written by the ingestion and execution pipelines, not by us.

// ProspectStore handles read-only prospect queries
type ProspectStore struct {
	collection *mongo.Collection
}

var _ autopilot.ProspectReader = (*ProspectStore)(nil)

// NewProspectStore creates a new prospect store
func NewProspectStore(mongodb *database.MongoDB) *ProspectStore {
	return &ProspectStore{collection: mongodb.Collection(database.CollectionProspects)}
}

// GetProspect retrieves a prospect by ID, scoped to owner
func (s *ProspectStore) GetProspect(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Prospect, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id

	var prospect models.Prospect
	if err := s.collection.FindOne(ctx, filter).Decode(&prospect); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("prospect not found")
		}
		return nil, fmt.Errorf("failed to get prospect: %w", err)
	}
	return &prospect, nil
}

// ListProspectsWithoutResearch returns active prospects with no research yet.
func (s *ProspectStore) ListProspectsWithoutResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.Prospect, error) {
	filter := ownerFilter(owner)
	filter["hasResearch"] = false
	filter["status"] = bson.M{"$ne": models.ProspectStatusLost}

	return s.find(ctx, filter, limit)
}

// ListQualifiedSilentSince returns qualified prospects whose last contact
// predates the cutoff (or who were never contacted but created before it).
func (s *ProspectStore) ListQualifiedSilentSince(ctx context.Context, owner models.Owner, cutoff time.Time, limit int64) ([]models.Prospect, error) {
	filter := ownerFilter(owner)
	filter["status"] = models.ProspectStatusQualified
	filter["$or"] = bson.A{
		bson.M{"lastContactedAt": bson.M{"$lt": cutoff}},
		bson.M{"lastContactedAt": bson.M{"$exists": false}, "createdAt": bson.M{"$lt": cutoff}},
	}

	return s.find(ctx, filter, limit)
}

func (s *ProspectStore) find(ctx context.Context, filter bson.M, limit int64) ([]models.Prospect, error) {
	if limit <= 0 {
		limit = 20
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list prospects: %w", err)
	}
	defer cursor.Close(ctx)

	var prospects []models.Prospect
	if err := cursor.All(ctx, &prospects); err != nil {
		return nil, fmt.Errorf("failed to decode prospects: %w", err)
	}
	return prospects, nil
}

// MeetingStore handles read-only meeting queries
type MeetingStore struct {
	collection *mongo.Collection
}

var _ autopilot.MeetingReader = (*MeetingStore)(nil)

// NewMeetingStore creates a new meeting store
func NewMeetingStore(mongodb *database.MongoDB) *MeetingStore {
	return &MeetingStore{collection: mongodb.Collection(database.CollectionMeetings)}
}

// GetMeeting retrieves a meeting by ID, scoped to owner
func (s *MeetingStore) GetMeeting(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Meeting, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id

	var meeting models.Meeting
	if err := s.collection.FindOne(ctx, filter).Decode(&meeting); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("meeting not found")
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return &meeting, nil
}

// ListUpcomingMeetings returns meetings starting within the given window,
// soonest first.
func (s *MeetingStore) ListUpcomingMeetings(ctx context.Context, owner models.Owner, within time.Duration, limit int64) ([]models.Meeting, error) {
	now := time.Now()
	filter := ownerFilter(owner)
	filter["startsAt"] = bson.M{"$gt": now, "$lte": now.Add(within)}

	if limit <= 0 {
		limit = 20
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "startsAt", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var meetings []models.Meeting
	if err := cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("failed to decode meetings: %w", err)
	}
	return meetings, nil
}

// ListEndedWithTranscript returns ended meetings with a ready transcript,
// most recent first.
func (s *MeetingStore) ListEndedWithTranscript(ctx context.Context, owner models.Owner, since time.Time, limit int64) ([]models.Meeting, error) {
	filter := ownerFilter(owner)
	filter["transcriptReady"] = true
	filter["endsAt"] = bson.M{"$gte": since, "$lt": time.Now()}

	if limit <= 0 {
		limit = 20
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "endsAt", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list ended meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var meetings []models.Meeting
	if err := cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("failed to decode meetings: %w", err)
	}
	return meetings, nil
}

// CountMeetings returns the owner's total meeting count.
func (s *MeetingStore) CountMeetings(ctx context.Context, owner models.Owner) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, ownerFilter(owner))
	if err != nil {
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return count, nil
}

// ResearchStore handles read-only research-brief queries
type ResearchStore struct {
	collection *mongo.Collection
}

var _ autopilot.ResearchReader = (*ResearchStore)(nil)

// NewResearchStore creates a new research store
func NewResearchStore(mongodb *database.MongoDB) *ResearchStore {
	return &ResearchStore{collection: mongodb.Collection(database.CollectionResearchBriefs)}
}

// ListReadyResearch returns briefs awaiting owner review.
func (s *ResearchStore) ListReadyResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.ResearchBrief, error) {
	filter := ownerFilter(owner)
	filter["status"] = models.ResearchStatusReady

	if limit <= 0 {
		limit = 20
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list ready research: %w", err)
	}
	defer cursor.Close(ctx)

	var briefs []models.ResearchBrief
	if err := cursor.All(ctx, &briefs); err != nil {
		return nil, fmt.Errorf("failed to decode research briefs: %w", err)
	}
	return briefs, nil
}

// ResearchByProspect returns the newest brief for a prospect, or nil when
// none exists.
func (s *ResearchStore) ResearchByProspect(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*models.ResearchBrief, error) {
	filter := ownerFilter(owner)
	filter["prospectId"] = prospectID

	var brief models.ResearchBrief
	err := s.collection.FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&brief)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get research brief: %w", err)
	}
	return &brief, nil
}

// OutreachStore handles read-only outreach queries
type OutreachStore struct {
	collection *mongo.Collection
}

var _ autopilot.OutreachReader = (*OutreachStore)(nil)

// NewOutreachStore creates a new outreach store
func NewOutreachStore(mongodb *database.MongoDB) *OutreachStore {
	return &OutreachStore{collection: mongodb.Collection(database.CollectionOutreachMessages)}
}

// LastOutreachSentAt returns when the owner last sent outreach to the
// prospect, or nil when nothing was ever sent.
func (s *OutreachStore) LastOutreachSentAt(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*time.Time, error) {
	filter := ownerFilter(owner)
	filter["prospectId"] = prospectID
	filter["status"] = models.OutreachStatusSent

	var msg models.OutreachMessage
	err := s.collection.FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "sentAt", Value: -1}})).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last outreach: %w", err)
	}
	return msg.SentAt, nil
}

// PrepStore handles read-only meeting-prep queries
type PrepStore struct {
	collection *mongo.Collection
}

var _ autopilot.PrepReader = (*PrepStore)(nil)

// NewPrepStore creates a new prep store
func NewPrepStore(mongodb *database.MongoDB) *PrepStore {
	return &PrepStore{collection: mongodb.Collection(database.CollectionMeetingPreps)}
}

// PrepExistsForMeeting reports whether a prep document exists for the meeting.
func (s *PrepStore) PrepExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error) {
	filter := ownerFilter(owner)
	filter["meetingId"] = meetingID

	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check prep existence: %w", err)
	}
	return count > 0, nil
}

// FollowupStore handles read-only followup queries
type FollowupStore struct {
	collection *mongo.Collection
}

var _ autopilot.FollowupReader = (*FollowupStore)(nil)

// NewFollowupStore creates a new followup store
func NewFollowupStore(mongodb *database.MongoDB) *FollowupStore {
	return &FollowupStore{collection: mongodb.Collection(database.CollectionFollowups)}
}

// GetFollowup retrieves a followup by ID, scoped to owner
func (s *FollowupStore) GetFollowup(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Followup, error) {
	filter := ownerFilter(owner)
	filter["_id"] = id

	var followup models.Followup
	if err := s.collection.FindOne(ctx, filter).Decode(&followup); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("followup not found")
		}
		return nil, fmt.Errorf("failed to get followup: %w", err)
	}
	return &followup, nil
}

// ListDueFollowups returns pending followups due at or before now, oldest
// due first.
func (s *FollowupStore) ListDueFollowups(ctx context.Context, owner models.Owner, now time.Time, limit int64) ([]models.Followup, error) {
	filter := ownerFilter(owner)
	filter["status"] = models.FollowupStatusPending
	filter["dueAt"] = bson.M{"$lte": now}

	if limit <= 0 {
		limit = 20
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "dueAt", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list due followups: %w", err)
	}
	defer cursor.Close(ctx)

	var followups []models.Followup
	if err := cursor.All(ctx, &followups); err != nil {
		return nil, fmt.Errorf("failed to decode followups: %w", err)
	}
	return followups, nil
}

// SentFollowupExistsForMeeting reports whether a sent followup exists for
// the meeting.
func (s *FollowupStore) SentFollowupExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error) {
	filter := ownerFilter(owner)
	filter["meetingId"] = meetingID
	filter["status"] = models.FollowupStatusSent

	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check sent followup: %w", err)
	}
	return count > 0, nil
}
