package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"salespilot/internal/logging"
	"salespilot/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LifecycleMetrics receives state-machine observations. The Prometheus
// implementation lives in internal/services.
type LifecycleMetrics interface {
	RecordProposalDecided(action string)
	RecordAutoCompleted()
	RecordWatchdogTimeout()
}

// Controller implements the proposal state machine. It is the only
// component permitted to mutate a proposal after creation; every transition
// goes through a status-guarded store update, so a concurrent actor losing
// the race gets ErrNotFoundOrProcessed instead of clobbering state.
type Controller struct {
	store      ProposalStore
	readers    Readers
	dispatcher Dispatcher

	metrics  LifecycleMetrics
	notifier Notifier
}

// NewController creates a lifecycle controller.
func NewController(store ProposalStore, readers Readers, dispatcher Dispatcher) *Controller {
	return &Controller{store: store, readers: readers, dispatcher: dispatcher}
}

// SetMetrics attaches lifecycle metrics (optional).
func (c *Controller) SetMetrics(m LifecycleMetrics) { c.metrics = m }

// SetNotifier attaches the lifecycle notifier (optional).
func (c *Controller) SetNotifier(n Notifier) { c.notifier = n }

// Accept moves a proposal from proposed to accepted and hands it to the
// execution collaborator. Acceptance is the commit point: the method
// returns once the transition is stored, and a dispatch failure is handled
// by the watchdog rather than by rolling the acceptance back.
func (c *Controller) Accept(ctx context.Context, owner models.Owner, id primitive.ObjectID, reason string) (*models.Proposal, error) {
	proposal, err := c.store.Decide(ctx, owner, id, models.ProposalStatusAccepted, reason)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordProposalDecided("accept")
	}

	c.dispatchAsync(proposal)
	return proposal, nil
}

// Decline moves a proposal from proposed to declined.
func (c *Controller) Decline(ctx context.Context, owner models.Owner, id primitive.ObjectID, reason string) (*models.Proposal, error) {
	proposal, err := c.store.Decide(ctx, owner, id, models.ProposalStatusDeclined, reason)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordProposalDecided("decline")
	}
	return proposal, nil
}

// Snooze moves a proposal from proposed to snoozed until the given instant.
// The unsnooze sweep brings it back.
func (c *Controller) Snooze(ctx context.Context, owner models.Owner, id primitive.ObjectID, until time.Time, reason string) (*models.Proposal, error) {
	if !until.After(time.Now()) {
		return nil, fmt.Errorf("snooze time must be in the future")
	}
	proposal, err := c.store.Snooze(ctx, owner, id, until, reason)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordProposalDecided("snooze")
	}
	return proposal, nil
}

// Retry moves a failed proposal back to accepted, clears its error and
// execution timestamps, and re-dispatches.
func (c *Controller) Retry(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error) {
	proposal, err := c.store.Retry(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordProposalDecided("retry")
	}

	c.dispatchAsync(proposal)
	return proposal, nil
}

// CompleteInline marks a proposal completed without dispatching — the owner
// performed the underlying action through a different surface. Valid from
// proposed, accepted or executing.
func (c *Controller) CompleteInline(ctx context.Context, owner models.Owner, id primitive.ObjectID) error {
	proposal, err := c.store.GetByID(ctx, owner, id)
	if err != nil {
		return err
	}
	if proposal.Status.IsTerminal() || proposal.Status == models.ProposalStatusSnoozed {
		return ErrNotFoundOrProcessed
	}

	artifact := models.ProposalArtifact{
		Type: "completed_inline",
		Note: "completed by the owner outside the execution pipeline",
	}
	// Guard on the status we observed; a racing actor fails the guard.
	markExec := proposal.Status == models.ProposalStatusExecuting
	if err := c.store.Complete(ctx, owner, id, []models.ProposalStatus{proposal.Status}, []models.ProposalArtifact{artifact}, markExec); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordProposalDecided("complete_inline")
	}
	return nil
}

// UpdateExecutionStatus is invoked only on behalf of the execution
// collaborator reporting progress. Re-delivered events fall out of the
// status guards as no-ops.
func (c *Controller) UpdateExecutionStatus(ctx context.Context, owner models.Owner, id primitive.ObjectID, status models.ProposalStatus, artifacts []models.ProposalArtifact, errMsg string) error {
	inFlight := []models.ProposalStatus{models.ProposalStatusAccepted, models.ProposalStatusExecuting}

	switch status {
	case models.ProposalStatusExecuting:
		err := c.store.MarkExecuting(ctx, owner, id)
		if errors.Is(err, ErrNotFoundOrProcessed) {
			// At-least-once delivery: the proposal already moved on.
			return nil
		}
		return err

	case models.ProposalStatusCompleted:
		if err := c.store.Complete(ctx, owner, id, inFlight, artifacts, true); err != nil {
			return err
		}
		c.notifyOutcome(ctx, owner, id, true)
		return nil

	case models.ProposalStatusFailed:
		if errMsg == "" {
			errMsg = "execution failed"
		}
		if err := c.store.Fail(ctx, owner, id, inFlight, errMsg, true); err != nil {
			return err
		}
		c.notifyOutcome(ctx, owner, id, false)
		return nil
	}

	return fmt.Errorf("unsupported execution status: %s", status)
}

// SurfaceActive returns the owner's proposed proposals after reconciling
// each against current domain state. A proposal whose precondition was
// satisfied through another path is auto-completed with an audit artifact
// instead of being surfaced; a proposal whose state could not be checked is
// surfaced as-is (prefer a possibly-stale proposal over losing a real one).
func (c *Controller) SurfaceActive(ctx context.Context, owner models.Owner, limit int64) ([]models.Proposal, error) {
	proposals, err := c.store.ListByStatus(ctx, owner, models.ProposalStatusProposed, limit)
	if err != nil {
		return nil, err
	}

	out := proposals[:0]
	for i := range proposals {
		p := &proposals[i]

		satisfied, err := c.preconditionSatisfied(ctx, p)
		if err != nil {
			slog.Warn("reconciliation check failed, surfacing proposal as-is",
				"proposal_id", p.ID.Hex(), "type", string(p.Type), "error", err)
			out = append(out, *p)
			continue
		}
		if !satisfied {
			out = append(out, *p)
			continue
		}

		if err := c.autoComplete(ctx, owner, p, []models.ProposalStatus{models.ProposalStatusProposed}, false); err != nil {
			// Lost a race — the proposal moved; don't surface it.
			continue
		}
	}

	return out, nil
}

// RecoverStuck is the watchdog: any proposal sitting in accepted/executing
// past the threshold is reconciled — auto-completed if the action happened
// through another path, failed with a timeout error otherwise. Either way
// it never stays in-flight forever.
func (c *Controller) RecoverStuck(ctx context.Context, threshold time.Duration) (completed, failed int, err error) {
	stuck, err := c.store.FindStuckExecutions(ctx, time.Now().Add(-threshold))
	if err != nil {
		return 0, 0, err
	}

	inFlight := []models.ProposalStatus{models.ProposalStatusAccepted, models.ProposalStatusExecuting}
	for i := range stuck {
		p := &stuck[i]
		owner := models.Owner{UserID: p.UserID, OrganizationID: p.OrganizationID}
		logger := logging.WithProposal(slog.Default(), p.ID.Hex(), string(p.Type))

		satisfied, checkErr := c.preconditionSatisfied(ctx, p)
		if checkErr == nil && satisfied {
			if err := c.autoComplete(ctx, owner, p, inFlight, p.Status == models.ProposalStatusExecuting); err == nil {
				completed++
				logger.Info("watchdog auto-completed stuck proposal")
			}
			continue
		}

		errMsg := fmt.Sprintf("execution timed out after %s", threshold)
		if err := c.store.Fail(ctx, owner, p.ID, inFlight, errMsg, p.Status == models.ProposalStatusExecuting); err != nil {
			if !errors.Is(err, ErrNotFoundOrProcessed) {
				logger.Error("watchdog failed to mark proposal", "error", err)
			}
			continue
		}
		failed++
		if c.metrics != nil {
			c.metrics.RecordWatchdogTimeout()
		}
		c.notifyOutcome(ctx, owner, p.ID, false)
		logger.Warn("watchdog failed stuck proposal", "threshold", threshold.String())
	}

	return completed, failed, nil
}

// autoComplete records that the proposal's action happened outside the
// engine and closes it.
func (c *Controller) autoComplete(ctx context.Context, owner models.Owner, p *models.Proposal, from []models.ProposalStatus, markExec bool) error {
	artifact := models.ProposalArtifact{
		Type: "auto_completed",
		Note: "precondition satisfied outside the engine",
	}
	if err := c.store.Complete(ctx, owner, p.ID, from, []models.ProposalArtifact{artifact}, markExec); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordAutoCompleted()
	}
	c.notifyOutcome(ctx, owner, p.ID, true)
	return nil
}

// preconditionSatisfied re-derives, per type, whether the suggested action
// already happened through another path. An error means the check was
// inconclusive; callers leave the proposal untouched in that case.
func (c *Controller) preconditionSatisfied(ctx context.Context, p *models.Proposal) (bool, error) {
	owner := models.Owner{UserID: p.UserID, OrganizationID: p.OrganizationID}

	switch p.Type {
	case models.ProposalTypeStartResearch:
		if p.ProspectID == nil {
			return false, nil
		}
		prospect, err := c.readers.Prospects.GetProspect(ctx, owner, *p.ProspectID)
		if err != nil {
			return false, err
		}
		return prospect.HasResearch, nil

	case models.ProposalTypeReviewResearch:
		if p.ProspectID == nil {
			return false, nil
		}
		brief, err := c.readers.Research.ResearchByProspect(ctx, owner, *p.ProspectID)
		if err != nil {
			return false, err
		}
		return brief != nil && brief.Status == models.ResearchStatusReviewed, nil

	case models.ProposalTypePrepareOutreach:
		if p.ProspectID == nil {
			return false, nil
		}
		lastSent, err := c.readers.Outreach.LastOutreachSentAt(ctx, owner, *p.ProspectID)
		if err != nil {
			return false, err
		}
		return lastSent != nil && lastSent.After(p.CreatedAt), nil

	case models.ProposalTypeCreatePrep:
		if p.MeetingID == nil {
			return false, nil
		}
		return c.readers.Preps.PrepExistsForMeeting(ctx, owner, *p.MeetingID)

	case models.ProposalTypeReviewMeetingSummary:
		if p.MeetingID == nil {
			return false, nil
		}
		meeting, err := c.readers.Meetings.GetMeeting(ctx, owner, *p.MeetingID)
		if err != nil {
			return false, err
		}
		return meeting.SummaryReviewed, nil

	case models.ProposalTypeSendFollowupEmail:
		if p.FollowupID != nil {
			followup, err := c.readers.Followups.GetFollowup(ctx, owner, *p.FollowupID)
			if err != nil {
				return false, err
			}
			return followup.Status == models.FollowupStatusSent, nil
		}
		if p.MeetingID != nil {
			return c.readers.Followups.SentFollowupExistsForMeeting(ctx, owner, *p.MeetingID)
		}
		return false, nil

	case models.ProposalTypeSyncCRMNotes:
		if p.MeetingID == nil {
			return false, nil
		}
		meeting, err := c.readers.Meetings.GetMeeting(ctx, owner, *p.MeetingID)
		if err != nil {
			return false, err
		}
		return meeting.NotesSynced, nil

	case models.ProposalTypeConnectCalendar:
		count, err := c.readers.Meetings.CountMeetings(ctx, owner)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}

	return false, nil
}

// notifyOutcome fans the final state out to connected clients.
func (c *Controller) notifyOutcome(ctx context.Context, owner models.Owner, id primitive.ObjectID, ok bool) {
	if c.notifier == nil {
		return
	}
	proposal, err := c.store.GetByID(ctx, owner, id)
	if err != nil {
		return
	}
	if ok {
		c.notifier.NotifyProposalCompleted(proposal)
	} else {
		c.notifier.NotifyProposalFailed(proposal)
	}
}

// dispatchAsync hands the proposal to the execution collaborator without
// blocking the caller. Failures are logged only — the watchdog owns
// recovery of dispatches that never report back.
func (c *Controller) dispatchAsync(p *models.Proposal) {
	if c.dispatcher == nil {
		return
	}

	req := ExecutionRequest{
		ProposalID:  p.ID.Hex(),
		Owner:       models.Owner{UserID: p.UserID, OrganizationID: p.OrganizationID},
		Type:        p.Type,
		ContextData: p.ContextData,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.dispatcher.Dispatch(ctx, req); err != nil {
			slog.Error("failed to dispatch proposal execution",
				"proposal_id", req.ProposalID, "type", string(req.Type), "error", err)
		}
	}()
}
