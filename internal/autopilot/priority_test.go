package autopilot

import (
	"testing"
	"time"

	"salespilot/internal/models"
)

func TestPriorityBaseValues(t *testing.T) {
	tests := []struct {
		proposalType models.ProposalType
		expected     int
	}{
		{models.ProposalTypeStartResearch, 50},
		{models.ProposalTypeReviewResearch, 55},
		{models.ProposalTypePrepareOutreach, 45},
		{models.ProposalTypeCreatePrep, 60},
		{models.ProposalTypeReviewMeetingSummary, 65},
		{models.ProposalTypeSendFollowupEmail, 60},
		{models.ProposalTypeSyncCRMNotes, 30},
		{models.ProposalTypeConnectCalendar, 40},
	}

	for _, tt := range tests {
		got := Priority(tt.proposalType, PriorityInputs{})
		if got != tt.expected {
			t.Errorf("Priority(%s, zero inputs) = %d, expected %d", tt.proposalType, got, tt.expected)
		}
	}
}

func TestPriorityTimeUrgency(t *testing.T) {
	tests := []struct {
		name        string
		timeToEvent time.Duration
		boost       int
	}{
		{"no event", 0, 0},
		{"past event", -time.Hour, 0},
		{"within 1h", 30 * time.Minute, 20},
		{"exactly 1h", time.Hour, 20},
		{"within 4h", 3 * time.Hour, 12},
		{"within 24h", 20 * time.Hour, 6},
		{"beyond 24h", 48 * time.Hour, 0},
	}

	base := Priority(models.ProposalTypeCreatePrep, PriorityInputs{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Priority(models.ProposalTypeCreatePrep, PriorityInputs{TimeToEvent: tt.timeToEvent})
			if got != base+tt.boost {
				t.Errorf("Priority with TimeToEvent=%s = %d, expected %d", tt.timeToEvent, got, base+tt.boost)
			}
		})
	}
}

func TestPriorityDealValue(t *testing.T) {
	tests := []struct {
		value float64
		boost int
	}{
		{0, 0},
		{4999, 0},
		{5000, 5},
		{25000, 10},
		{100000, 15},
		{5000000, 15},
	}

	base := Priority(models.ProposalTypeStartResearch, PriorityInputs{})
	for _, tt := range tests {
		got := Priority(models.ProposalTypeStartResearch, PriorityInputs{DealValue: tt.value})
		if got != base+tt.boost {
			t.Errorf("Priority with DealValue=%.0f = %d, expected %d", tt.value, got, base+tt.boost)
		}
	}
}

func TestPriorityClampedToUpperBound(t *testing.T) {
	// Every boost maxed out on the highest base must still clamp at 100.
	got := Priority(models.ProposalTypeReviewMeetingSummary, PriorityInputs{
		TimeToEvent:    10 * time.Minute,
		DealValue:      500000,
		ProspectStatus: models.ProspectStatusQualified,
		Staleness:      60 * 24 * time.Hour,
		FlowStep:       5,
	})
	if got != 100 {
		t.Errorf("Priority with all boosts maxed = %d, expected clamp at 100", got)
	}
}

func TestPriorityFlowStepBounded(t *testing.T) {
	base := Priority(models.ProposalTypeSyncCRMNotes, PriorityInputs{})

	step3 := Priority(models.ProposalTypeSyncCRMNotes, PriorityInputs{FlowStep: 3})
	step9 := Priority(models.ProposalTypeSyncCRMNotes, PriorityInputs{FlowStep: 9})
	if step3 != base+6 {
		t.Errorf("FlowStep=3 boost = %d, expected %d", step3-base, 6)
	}
	if step9 != step3 {
		t.Errorf("FlowStep=9 priority = %d, expected same as FlowStep=3 (%d)", step9, step3)
	}
}

func TestPriorityProspectStatus(t *testing.T) {
	base := Priority(models.ProposalTypePrepareOutreach, PriorityInputs{})

	qualified := Priority(models.ProposalTypePrepareOutreach, PriorityInputs{ProspectStatus: models.ProspectStatusQualified})
	if qualified != base+10 {
		t.Errorf("qualified prospect boost = %d, expected 10", qualified-base)
	}

	customer := Priority(models.ProposalTypePrepareOutreach, PriorityInputs{ProspectStatus: models.ProspectStatusCustomer})
	if customer != base+5 {
		t.Errorf("customer prospect boost = %d, expected 5", customer-base)
	}
}
