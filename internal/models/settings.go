package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AutopilotSettings holds the per-owner configuration consumed by the
// detectors and the sequencing filter.
type AutopilotSettings struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	OrganizationID string             `bson:"organizationId" json:"organization_id"`

	Enabled bool `bson:"enabled" json:"enabled"`

	AutoResearchNewMeetings  bool `bson:"autoResearchNewMeetings" json:"auto_research_new_meetings"`
	AutoPrepKnownProspects   bool `bson:"autoPrepKnownProspects" json:"auto_prep_known_prospects"`
	AutoFollowupAfterMeeting bool `bson:"autoFollowupAfterMeeting" json:"auto_followup_after_meeting"`

	OutreachCooldownDays    int      `bson:"outreachCooldownDays" json:"outreach_cooldown_days"`
	PrepReminderHours       int      `bson:"prepReminderHours" json:"prep_reminder_hours"`
	ExcludedMeetingKeywords []string `bson:"excludedMeetingKeywords,omitempty" json:"excluded_meeting_keywords,omitempty"`
	MaxConcurrentProposals  int      `bson:"maxConcurrentProposals" json:"max_concurrent_proposals"`

	// Optional owner-custom detection schedule. Empty means the owner is
	// covered by the global detection sweep.
	DetectionCron string `bson:"detectionCron,omitempty" json:"detection_cron,omitempty"`
	Timezone      string `bson:"timezone,omitempty" json:"timezone,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// DefaultAutopilotSettings returns the settings applied to an owner that has
// never customized autopilot.
func DefaultAutopilotSettings(userID, organizationID string) *AutopilotSettings {
	return &AutopilotSettings{
		UserID:                   userID,
		OrganizationID:           organizationID,
		Enabled:                  true,
		AutoResearchNewMeetings:  true,
		AutoPrepKnownProspects:   true,
		AutoFollowupAfterMeeting: true,
		OutreachCooldownDays:     14,
		PrepReminderHours:        24,
		MaxConcurrentProposals:   3,
	}
}

// UpdateSettingsRequest carries a partial settings update. Nil fields are
// left unchanged.
type UpdateSettingsRequest struct {
	Enabled                  *bool     `json:"enabled,omitempty"`
	AutoResearchNewMeetings  *bool     `json:"auto_research_new_meetings,omitempty"`
	AutoPrepKnownProspects   *bool     `json:"auto_prep_known_prospects,omitempty"`
	AutoFollowupAfterMeeting *bool     `json:"auto_followup_after_meeting,omitempty"`
	OutreachCooldownDays     *int      `json:"outreach_cooldown_days,omitempty"`
	PrepReminderHours        *int      `json:"prep_reminder_hours,omitempty"`
	ExcludedMeetingKeywords  *[]string `json:"excluded_meeting_keywords,omitempty"`
	MaxConcurrentProposals   *int      `json:"max_concurrent_proposals,omitempty"`
	DetectionCron            *string   `json:"detection_cron,omitempty"`
	Timezone                 *string   `json:"timezone,omitempty"`
}
