package config

import (
	"fmt"
	"os"

	"salespilot/internal/models"

	"gopkg.in/yaml.v3"
)

// DetectorDefaults are org-wide default settings applied to owners that
// never customized autopilot, loaded from an optional YAML file and
// hot-reloaded on change.
type DetectorDefaults struct {
	Enabled                  *bool    `yaml:"enabled"`
	AutoResearchNewMeetings  *bool    `yaml:"auto_research_new_meetings"`
	AutoPrepKnownProspects   *bool    `yaml:"auto_prep_known_prospects"`
	AutoFollowupAfterMeeting *bool    `yaml:"auto_followup_after_meeting"`
	OutreachCooldownDays     *int     `yaml:"outreach_cooldown_days"`
	PrepReminderHours        *int     `yaml:"prep_reminder_hours"`
	ExcludedMeetingKeywords  []string `yaml:"excluded_meeting_keywords"`
	MaxConcurrentProposals   *int     `yaml:"max_concurrent_proposals"`
}

// LoadDetectorDefaults parses the defaults file.
func LoadDetectorDefaults(path string) (*DetectorDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	var defaults DetectorDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("failed to parse defaults file: %w", err)
	}
	return &defaults, nil
}

// Apply overlays the file values onto built-in defaults for one owner.
func (d *DetectorDefaults) Apply(userID, organizationID string) *models.AutopilotSettings {
	settings := models.DefaultAutopilotSettings(userID, organizationID)

	if d.Enabled != nil {
		settings.Enabled = *d.Enabled
	}
	if d.AutoResearchNewMeetings != nil {
		settings.AutoResearchNewMeetings = *d.AutoResearchNewMeetings
	}
	if d.AutoPrepKnownProspects != nil {
		settings.AutoPrepKnownProspects = *d.AutoPrepKnownProspects
	}
	if d.AutoFollowupAfterMeeting != nil {
		settings.AutoFollowupAfterMeeting = *d.AutoFollowupAfterMeeting
	}
	if d.OutreachCooldownDays != nil && *d.OutreachCooldownDays > 0 {
		settings.OutreachCooldownDays = *d.OutreachCooldownDays
	}
	if d.PrepReminderHours != nil && *d.PrepReminderHours > 0 {
		settings.PrepReminderHours = *d.PrepReminderHours
	}
	if len(d.ExcludedMeetingKeywords) > 0 {
		settings.ExcludedMeetingKeywords = d.ExcludedMeetingKeywords
	}
	if d.MaxConcurrentProposals != nil && *d.MaxConcurrentProposals > 0 {
		settings.MaxConcurrentProposals = *d.MaxConcurrentProposals
	}
	return settings
}
