package autopilot

import (
	"time"

	"salespilot/internal/models"
)

// PriorityInputs are the situational signals the calculator folds into a
// proposal's priority. Zero values mean "signal not applicable".
type PriorityInputs struct {
	// TimeToEvent is the distance to the triggering event (e.g. meeting
	// start). Zero or negative means no upcoming event.
	TimeToEvent time.Duration

	DealValue float64

	ProspectStatus models.ProspectStatus

	// Staleness is the time since the entity was last touched (e.g. since
	// the prospect was last contacted).
	Staleness time.Duration

	// FlowStep hints how deep into the post-meeting workflow the proposal
	// sits; later steps get a small nudge so linear flows finish.
	FlowStep int
}

// basePriority is the per-type starting value. Adjustments are added on top
// and the result is clamped to [0, 100].
var basePriority = map[models.ProposalType]int{
	models.ProposalTypeStartResearch:        50,
	models.ProposalTypeReviewResearch:       55,
	models.ProposalTypePrepareOutreach:      45,
	models.ProposalTypeCreatePrep:           60,
	models.ProposalTypeReviewMeetingSummary: 65,
	models.ProposalTypeSendFollowupEmail:    60,
	models.ProposalTypeSyncCRMNotes:         30,
	models.ProposalTypeConnectCalendar:      40,
}

// Priority computes a proposal's priority. The function is pure, the
// adjustments are monotonic and independently bounded so no single factor
// can dominate, and additions commute into a single final clamp.
func Priority(t models.ProposalType, in PriorityInputs) int {
	p := basePriority[t]

	p += timeUrgencyBoost(in.TimeToEvent)
	p += dealValueBoost(in.DealValue)
	p += statusBoost(in.ProspectStatus)
	p += stalenessBoost(in.Staleness)
	p += flowStepBoost(in.FlowStep)

	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// timeUrgencyBoost: closer events score higher. Bounded at +20.
func timeUrgencyBoost(until time.Duration) int {
	if until <= 0 {
		return 0
	}
	switch {
	case until <= time.Hour:
		return 20
	case until <= 4*time.Hour:
		return 12
	case until <= 24*time.Hour:
		return 6
	}
	return 0
}

// dealValueBoost: larger deals score higher. Bounded at +15.
func dealValueBoost(value float64) int {
	switch {
	case value >= 100000:
		return 15
	case value >= 25000:
		return 10
	case value >= 5000:
		return 5
	}
	return 0
}

// statusBoost: qualified prospects outrank raw leads. Bounded at +10.
func statusBoost(status models.ProspectStatus) int {
	switch status {
	case models.ProspectStatusQualified:
		return 10
	case models.ProspectStatusCustomer:
		return 5
	}
	return 0
}

// stalenessBoost: long-silent entities get a nudge. Bounded at +10.
func stalenessBoost(staleness time.Duration) int {
	switch {
	case staleness >= 30*24*time.Hour:
		return 10
	case staleness >= 14*24*time.Hour:
		return 5
	}
	return 0
}

// flowStepBoost: +2 per step into the workflow, bounded at +6.
func flowStepBoost(step int) int {
	if step <= 0 {
		return 0
	}
	if step > 3 {
		step = 3
	}
	return 2 * step
}
