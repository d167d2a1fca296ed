package autopilot

import (
	"sort"

	"salespilot/internal/models"
)

// Class splits the proposal catalog on one axis: sequential types form the
// owner's linear workflow and at most one of them may be non-terminal at a
// time; parallel types coexist freely once their own dependency is met.
type Class int

const (
	ClassSequential Class = iota
	ClassParallel
)

// dependencyGraph maps each type to its prerequisite types. A candidate is
// dropped unless every prerequisite was completed for the same trigger
// entity within the lookback window.
var dependencyGraph = map[models.ProposalType][]models.ProposalType{
	models.ProposalTypeStartResearch:        nil,
	models.ProposalTypeReviewResearch:       {models.ProposalTypeStartResearch},
	models.ProposalTypePrepareOutreach:      {models.ProposalTypeReviewResearch},
	models.ProposalTypeCreatePrep:           nil,
	models.ProposalTypeReviewMeetingSummary: nil,
	models.ProposalTypeSendFollowupEmail:    {models.ProposalTypeReviewMeetingSummary},
	models.ProposalTypeSyncCRMNotes:         nil,
	models.ProposalTypeConnectCalendar:      nil,
}

// classOf classifies every type in the catalog.
var classOf = map[models.ProposalType]Class{
	models.ProposalTypeStartResearch:        ClassSequential,
	models.ProposalTypeReviewResearch:       ClassSequential,
	models.ProposalTypePrepareOutreach:      ClassSequential,
	models.ProposalTypeCreatePrep:           ClassSequential,
	models.ProposalTypeReviewMeetingSummary: ClassSequential,
	models.ProposalTypeSendFollowupEmail:    ClassSequential,
	models.ProposalTypeSyncCRMNotes:         ClassParallel,
	models.ProposalTypeConnectCalendar:      ClassParallel,
}

// Prerequisites returns the dependency edges for a type.
func Prerequisites(t models.ProposalType) []models.ProposalType {
	return dependencyGraph[t]
}

// ClassOf returns the sequencing class for a type.
func ClassOf(t models.ProposalType) Class {
	return classOf[t]
}

// PendingState summarizes the owner's already-persisted non-terminal
// proposals, which the filter counts against the caps.
type PendingState struct {
	Total      int
	Sequential int

	// sequentialWork indexes pending sequential proposals by type and
	// trigger entity so an urgency escalation of work already pending can
	// be told apart from genuinely new sequential work.
	sequentialWork map[string]bool
}

// PendingStateOf derives the pending counts from a non-terminal listing.
func PendingStateOf(pending []models.Proposal) PendingState {
	st := PendingState{
		Total:          len(pending),
		sequentialWork: make(map[string]bool),
	}
	for i := range pending {
		if ClassOf(pending[i].Type) != ClassSequential {
			continue
		}
		st.Sequential++
		if key := pending[i].EntityKey(); key != "" {
			st.sequentialWork[workKey(pending[i].Type, key)] = true
		}
	}
	return st
}

// EscalatesPending reports whether a sequential proposal for the same type
// and trigger entity is already pending. Such a candidate re-raises pending
// work at a higher urgency bucket rather than adding new work, so it is
// exempt from sequential exclusivity: the fresher proposal surfaces next to
// the stale one instead of waiting for it to expire.
func (st PendingState) EscalatesPending(t models.ProposalType, entityKey string) bool {
	return entityKey != "" && st.sequentialWork[workKey(t, entityKey)]
}

func workKey(t models.ProposalType, entityKey string) string {
	return string(t) + "|" + entityKey
}

// Sequence applies the dependency graph, the sequential-exclusivity rule and
// the concurrency cap to a run's candidates. Steps, in order:
//
//  1. drop candidates whose prerequisites are not completed for their own
//     trigger entity within the window;
//  2. sort survivors by priority descending (stable, so detector order
//     breaks ties deterministically);
//  3. admit in order, suppressing a second sequential-class candidate while
//     one is pending or already admitted — except a candidate that escalates
//     a pending proposal's own work (same type, same trigger entity, higher
//     urgency bucket), which is admitted alongside it;
//  4. stop when pending + admitted reaches the owner's concurrency cap.
//
// Suppression is not an error — a dropped candidate simply resurfaces on a
// later run once the pipeline drains.
func Sequence(candidates []Candidate, oc *OwnerContext, pending PendingState) []Candidate {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if dependenciesMet(c, oc) {
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority > eligible[j].Priority
	})

	maxConcurrent := oc.Settings.MaxConcurrentProposals
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	sequentialBusy := pending.Sequential > 0
	total := pending.Total

	admitted := make([]Candidate, 0, len(eligible))
	for _, c := range eligible {
		if total >= maxConcurrent {
			break
		}
		if ClassOf(c.Type) == ClassSequential {
			if sequentialBusy && !pending.EscalatesPending(c.Type, c.EntityKey()) {
				continue
			}
			sequentialBusy = true
		}
		admitted = append(admitted, c)
		total++
	}

	return admitted
}

func dependenciesMet(c Candidate, oc *OwnerContext) bool {
	entityKey := c.EntityKey()
	for _, prereq := range Prerequisites(c.Type) {
		if !oc.HasCompleted(entityKey, prereq) {
			return false
		}
	}
	return true
}
