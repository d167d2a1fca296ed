package autopilot

import (
	"context"

	"salespilot/internal/models"
)

// SendFollowupDetector proposes sending the followup email for a meeting
// whose followup record is due and unsent. Prospect-only followups (no
// meeting link) are left to the owner: the dependency chain for this type
// is keyed on the meeting.
type SendFollowupDetector struct {
	followups FollowupReader
	meetings  MeetingReader
}

// NewSendFollowupDetector creates the send_followup_email detector.
func NewSendFollowupDetector(followups FollowupReader, meetings MeetingReader) *SendFollowupDetector {
	return &SendFollowupDetector{followups: followups, meetings: meetings}
}

// Type implements Detector.
func (d *SendFollowupDetector) Type() models.ProposalType {
	return models.ProposalTypeSendFollowupEmail
}

// Detect implements Detector.
func (d *SendFollowupDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	if !oc.Settings.AutoFollowupAfterMeeting {
		return nil, nil
	}

	followups, err := d.followups.ListDueFollowups(ctx, oc.Owner, oc.Now, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range followups {
		f := &followups[i]
		if f.MeetingID == nil {
			continue
		}

		meeting, err := d.meetings.GetMeeting(ctx, oc.Owner, *f.MeetingID)
		if err != nil || meeting == nil {
			continue
		}
		if oc.TitleExcluded(meeting.Title) {
			continue
		}

		fid := f.ID
		refs := models.TriggerRefs{MeetingID: f.MeetingID, FollowupID: &fid}
		key := DedupeKey(models.ProposalTypeSendFollowupEmail, refs.EntityKey(), BucketNone)
		if oc.NonTerminalKeys[key] {
			continue
		}

		inputs := PriorityInputs{FlowStep: 3}
		if f.DueAt != nil {
			inputs.Staleness = oc.Now.Sub(*f.DueAt)
		}

		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypeSendFollowupEmail,
			DedupeKey:   key,
			Priority:    Priority(models.ProposalTypeSendFollowupEmail, inputs),
			ContextData: map[string]interface{}{
				"meeting_title": meeting.Title,
			},
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}
