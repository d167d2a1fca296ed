package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDetectorDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopilot.yaml")
	content := `
enabled: true
auto_followup_after_meeting: false
outreach_cooldown_days: 21
max_concurrent_proposals: 5
excluded_meeting_keywords:
  - standup
  - "1:1"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write defaults file: %v", err)
	}

	defaults, err := LoadDetectorDefaults(path)
	if err != nil {
		t.Fatalf("LoadDetectorDefaults failed: %v", err)
	}

	settings := defaults.Apply("u1", "org1")
	if settings.AutoFollowupAfterMeeting {
		t.Error("expected auto_followup_after_meeting overridden to false")
	}
	if settings.OutreachCooldownDays != 21 {
		t.Errorf("OutreachCooldownDays = %d, expected 21", settings.OutreachCooldownDays)
	}
	if settings.MaxConcurrentProposals != 5 {
		t.Errorf("MaxConcurrentProposals = %d, expected 5", settings.MaxConcurrentProposals)
	}
	if len(settings.ExcludedMeetingKeywords) != 2 {
		t.Errorf("ExcludedMeetingKeywords = %v, expected 2 entries", settings.ExcludedMeetingKeywords)
	}

	// Fields absent from the file keep the built-in defaults.
	if !settings.AutoResearchNewMeetings {
		t.Error("expected auto_research_new_meetings to keep its built-in default")
	}
	if settings.PrepReminderHours != 24 {
		t.Errorf("PrepReminderHours = %d, expected the built-in 24", settings.PrepReminderHours)
	}
}

func TestLoadDetectorDefaultsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadDetectorDefaults(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("enabled: [not, a, bool"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadDetectorDefaults(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestApplyIgnoresNonPositiveNumbers(t *testing.T) {
	zero := 0
	negative := -3
	defaults := &DetectorDefaults{
		OutreachCooldownDays:   &zero,
		MaxConcurrentProposals: &negative,
	}

	settings := defaults.Apply("u1", "org1")
	if settings.OutreachCooldownDays != 14 {
		t.Errorf("OutreachCooldownDays = %d, expected built-in 14 for zero override", settings.OutreachCooldownDays)
	}
	if settings.MaxConcurrentProposals != 3 {
		t.Errorf("MaxConcurrentProposals = %d, expected built-in 3 for negative override", settings.MaxConcurrentProposals)
	}
}
