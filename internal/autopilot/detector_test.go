package autopilot

import (
	"testing"
	"time"

	"salespilot/internal/models"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		until    time.Duration
		expected UrgencyBucket
	}{
		{30 * time.Minute, BucketWithin1h},
		{time.Hour, BucketWithin1h},
		{2 * time.Hour, BucketWithin4h},
		{4 * time.Hour, BucketWithin4h},
		{12 * time.Hour, BucketWithin24h},
		{24 * time.Hour, BucketWithin24h},
		{25 * time.Hour, BucketNone},
		{7 * 24 * time.Hour, BucketNone},
	}

	for _, tt := range tests {
		if got := BucketFor(tt.until); got != tt.expected {
			t.Errorf("BucketFor(%s) = %q, expected %q", tt.until, got, tt.expected)
		}
	}
}

func TestDedupeKey(t *testing.T) {
	got := DedupeKey(models.ProposalTypeCreatePrep, "meeting:abc123", BucketWithin4h)
	if got != "create_prep:meeting:abc123:4h" {
		t.Errorf("DedupeKey with bucket = %q, expected %q", got, "create_prep:meeting:abc123:4h")
	}

	got = DedupeKey(models.ProposalTypeStartResearch, "prospect:def456", BucketNone)
	if got != "start_research:prospect:def456" {
		t.Errorf("DedupeKey without bucket = %q, expected %q", got, "start_research:prospect:def456")
	}
}

func TestDedupeKeyEscalatesAcrossBuckets(t *testing.T) {
	// The same meeting in different urgency buckets must yield different
	// keys so a closer, higher-priority proposal can coexist with the
	// earlier one.
	far := DedupeKey(models.ProposalTypeCreatePrep, "meeting:m1", BucketFor(20*time.Hour))
	near := DedupeKey(models.ProposalTypeCreatePrep, "meeting:m1", BucketFor(2*time.Hour))
	if far == near {
		t.Errorf("expected distinct dedupe keys across buckets, both were %q", far)
	}
}

func TestTitleExcluded(t *testing.T) {
	oc := &OwnerContext{
		Settings: &models.AutopilotSettings{
			ExcludedMeetingKeywords: []string{"standup", " 1:1 ", "PERSONAL"},
		},
	}

	tests := []struct {
		title    string
		excluded bool
	}{
		{"Daily Standup", true},
		{"Weekly 1:1 with manager", true},
		{"Personal errand", true},
		{"Acme Corp discovery call", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := oc.TitleExcluded(tt.title); got != tt.excluded {
			t.Errorf("TitleExcluded(%q) = %v, expected %v", tt.title, got, tt.excluded)
		}
	}
}

func TestHasCompleted(t *testing.T) {
	oc := &OwnerContext{
		CompletedByEntity: map[string]map[models.ProposalType]bool{
			"prospect:p1": {models.ProposalTypeStartResearch: true},
		},
	}

	if !oc.HasCompleted("prospect:p1", models.ProposalTypeStartResearch) {
		t.Error("expected start_research completed for prospect:p1")
	}
	if oc.HasCompleted("prospect:p1", models.ProposalTypeReviewResearch) {
		t.Error("did not expect review_research completed for prospect:p1")
	}
	if oc.HasCompleted("prospect:p2", models.ProposalTypeStartResearch) {
		t.Error("did not expect completions for unknown entity")
	}
}
