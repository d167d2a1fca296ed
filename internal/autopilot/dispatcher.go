package autopilot

import (
	"context"

	"salespilot/internal/models"
)

// ExecutionRequest is the payload handed to the execution collaborator when
// a proposal is accepted or retried. It is the only outbound interface the
// engine owns.
type ExecutionRequest struct {
	ProposalID  string                 `json:"proposal_id"`
	Owner       models.Owner           `json:"owner"`
	Type        models.ProposalType    `json:"type"`
	ContextData map[string]interface{} `json:"context_data,omitempty"`
}

// Dispatcher hands an accepted proposal to the external execution pipeline.
// Dispatch is fire-and-forget from the state machine's point of view: a
// handoff failure never reverts the accepted transition — the watchdog
// catches executions that never report back.
type Dispatcher interface {
	Dispatch(ctx context.Context, req ExecutionRequest) error
}
