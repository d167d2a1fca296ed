package autopilot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salespilot/internal/models"
)

// maxCandidatesPerDetector bounds each detector's output per run so one noisy
// rule cannot flood the sequencing filter.
const maxCandidatesPerDetector = 10

// Candidate is a proposal a detector wants to raise. It becomes a Proposal
// in status proposed when the engine persists it.
type Candidate struct {
	models.TriggerRefs

	Type      models.ProposalType
	DedupeKey string
	Priority  int

	ContextData map[string]interface{}
	ExpiresAt   *time.Time
}

// OwnerContext is the read-only snapshot a detection run is evaluated
// against. It is assembled once per run; detectors never write.
type OwnerContext struct {
	Owner    models.Owner
	Settings *models.AutopilotSettings

	// NonTerminalKeys is the dedupe-key set of the owner's non-terminal
	// proposals at snapshot time (idempotence pre-check).
	NonTerminalKeys map[string]bool

	// CompletedByEntity maps trigger-entity key → proposal types completed
	// within the dependency lookback window.
	CompletedByEntity map[string]map[models.ProposalType]bool

	Now time.Time
}

// HasCompleted reports whether a proposal of the given type was completed
// for the entity within the lookback window.
func (oc *OwnerContext) HasCompleted(entityKey string, t models.ProposalType) bool {
	types, ok := oc.CompletedByEntity[entityKey]
	return ok && types[t]
}

// TitleExcluded reports whether a meeting title matches the owner-configured
// keyword blocklist.
func (oc *OwnerContext) TitleExcluded(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range oc.Settings.ExcludedMeetingKeywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Detector is one detection rule. Each proposal type has exactly one
// detector. Detectors read domain collaborators, never engine state, and
// must skip candidates whose dedupe key is already in the non-terminal set.
type Detector interface {
	Type() models.ProposalType
	Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error)
}

// UrgencyBucket classifies how soon a time-sensitive trigger fires. The
// bucket is part of the dedupe key on purpose: when a meeting slides from
// the 24h to the 4h bucket, a fresh, higher-priority proposal may be raised
// even though the earlier bucket's proposal is still pending.
type UrgencyBucket string

const (
	BucketWithin1h  UrgencyBucket = "1h"
	BucketWithin4h  UrgencyBucket = "4h"
	BucketWithin24h UrgencyBucket = "24h"
	BucketNone      UrgencyBucket = ""
)

// BucketFor returns the urgency bucket for an event at the given distance.
func BucketFor(until time.Duration) UrgencyBucket {
	switch {
	case until <= time.Hour:
		return BucketWithin1h
	case until <= 4*time.Hour:
		return BucketWithin4h
	case until <= 24*time.Hour:
		return BucketWithin24h
	}
	return BucketNone
}

// DedupeKey builds the deterministic key identifying "this same situation".
// Format: type:entityKey[:bucket].
func DedupeKey(t models.ProposalType, entityKey string, bucket UrgencyBucket) string {
	if bucket == BucketNone {
		return fmt.Sprintf("%s:%s", t, entityKey)
	}
	return fmt.Sprintf("%s:%s:%s", t, entityKey, bucket)
}
