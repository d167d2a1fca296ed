package services

import (
	"context"
	"fmt"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/database"
	"salespilot/internal/models"

	cache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsStore handles per-owner autopilot settings. Reads are cached for a
// short TTL because every detection run and every surfaced list loads them;
// writes invalidate the cache entry.
type SettingsStore struct {
	collection *mongo.Collection
	cache      *cache.Cache

	// defaults overrides the built-in defaults when a YAML defaults file is
	// loaded. Nil means built-ins.
	defaults func(userID, organizationID string) *models.AutopilotSettings
}

var _ autopilot.SettingsReader = (*SettingsStore)(nil)

// NewSettingsStore creates a new settings store
func NewSettingsStore(mongodb *database.MongoDB) *SettingsStore {
	return &SettingsStore{
		collection: mongodb.Collection(database.CollectionAutopilotSettings),
		cache:      cache.New(5*time.Minute, 10*time.Minute),
	}
}

// SetDefaultsProvider overrides the factory used for owners with no stored
// settings document.
func (s *SettingsStore) SetDefaultsProvider(fn func(userID, organizationID string) *models.AutopilotSettings) {
	s.defaults = fn
}

// GetSettings returns the owner's settings, falling back to defaults when
// the owner never customized them.
func (s *SettingsStore) GetSettings(ctx context.Context, owner models.Owner) (*models.AutopilotSettings, error) {
	if cached, found := s.cache.Get(owner.UserID); found {
		return cached.(*models.AutopilotSettings), nil
	}

	var settings models.AutopilotSettings
	err := s.collection.FindOne(ctx, bson.M{"userId": owner.UserID}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			defaults := s.defaultSettings(owner)
			s.cache.Set(owner.UserID, defaults, cache.DefaultExpiration)
			return defaults, nil
		}
		return nil, fmt.Errorf("failed to get autopilot settings: %w", err)
	}

	s.cache.Set(owner.UserID, &settings, cache.DefaultExpiration)
	return &settings, nil
}

// Update applies a partial settings update and returns the stored document.
// Creates the document from defaults on first customization.
func (s *SettingsStore) Update(ctx context.Context, owner models.Owner, req *models.UpdateSettingsRequest) (*models.AutopilotSettings, error) {
	current, err := s.loadOrDefault(ctx, owner)
	if err != nil {
		return nil, err
	}

	applyUpdate(current, req)
	current.UpdatedAt = time.Now()

	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated models.AutopilotSettings
	err = s.collection.FindOneAndReplace(ctx,
		bson.M{"userId": owner.UserID}, current, opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update autopilot settings: %w", err)
	}

	s.cache.Delete(owner.UserID)
	return &updated, nil
}

// ListEnabledOwners returns every owner with autopilot enabled. Owners that
// never stored a settings document are not returned; they are picked up when
// another surface touches autopilot for the first time.
func (s *SettingsStore) ListEnabledOwners(ctx context.Context) ([]models.Owner, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"enabled": true},
		options.Find().SetProjection(bson.M{"userId": 1, "organizationId": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled owners: %w", err)
	}
	defer cursor.Close(ctx)

	var owners []models.Owner
	for cursor.Next(ctx) {
		var doc models.AutopilotSettings
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
		owners = append(owners, models.Owner{UserID: doc.UserID, OrganizationID: doc.OrganizationID})
	}
	return owners, cursor.Err()
}

// ListWithDetectionCron returns enabled settings documents carrying a custom
// detection schedule.
func (s *SettingsStore) ListWithDetectionCron(ctx context.Context) ([]models.AutopilotSettings, error) {
	cursor, err := s.collection.Find(ctx, bson.M{
		"enabled":       true,
		"detectionCron": bson.M{"$exists": true, "$ne": ""},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled owners: %w", err)
	}
	defer cursor.Close(ctx)

	var all []models.AutopilotSettings
	if err := cursor.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return all, nil
}

func (s *SettingsStore) loadOrDefault(ctx context.Context, owner models.Owner) (*models.AutopilotSettings, error) {
	var settings models.AutopilotSettings
	err := s.collection.FindOne(ctx, bson.M{"userId": owner.UserID}).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if err == mongo.ErrNoDocuments {
		d := s.defaultSettings(owner)
		d.CreatedAt = time.Now()
		return d, nil
	}
	return nil, fmt.Errorf("failed to load autopilot settings: %w", err)
}

func (s *SettingsStore) defaultSettings(owner models.Owner) *models.AutopilotSettings {
	if s.defaults != nil {
		return s.defaults(owner.UserID, owner.OrganizationID)
	}
	return models.DefaultAutopilotSettings(owner.UserID, owner.OrganizationID)
}

// applyUpdate copies non-nil request fields onto the settings document.
func applyUpdate(settings *models.AutopilotSettings, req *models.UpdateSettingsRequest) {
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.AutoResearchNewMeetings != nil {
		settings.AutoResearchNewMeetings = *req.AutoResearchNewMeetings
	}
	if req.AutoPrepKnownProspects != nil {
		settings.AutoPrepKnownProspects = *req.AutoPrepKnownProspects
	}
	if req.AutoFollowupAfterMeeting != nil {
		settings.AutoFollowupAfterMeeting = *req.AutoFollowupAfterMeeting
	}
	if req.OutreachCooldownDays != nil && *req.OutreachCooldownDays > 0 {
		settings.OutreachCooldownDays = *req.OutreachCooldownDays
	}
	if req.PrepReminderHours != nil && *req.PrepReminderHours > 0 {
		settings.PrepReminderHours = *req.PrepReminderHours
	}
	if req.ExcludedMeetingKeywords != nil {
		settings.ExcludedMeetingKeywords = *req.ExcludedMeetingKeywords
	}
	if req.MaxConcurrentProposals != nil && *req.MaxConcurrentProposals > 0 {
		settings.MaxConcurrentProposals = *req.MaxConcurrentProposals
	}
	if req.DetectionCron != nil {
		settings.DetectionCron = *req.DetectionCron
	}
	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
}
