package autopilot

import (
	"context"
	"time"

	"salespilot/internal/models"
)

// summaryLookback bounds how far back the summary and CRM-sync rules scan
// for ended meetings.
const summaryLookback = 7 * 24 * time.Hour

// CreatePrepDetector proposes generating prep for meetings inside the
// owner's reminder horizon that have none yet. Candidates are bucketed by
// urgency so the dedupe key escalates as the meeting approaches.
type CreatePrepDetector struct {
	meetings MeetingReader
	preps    PrepReader
}

// NewCreatePrepDetector creates the create_prep detector.
func NewCreatePrepDetector(meetings MeetingReader, preps PrepReader) *CreatePrepDetector {
	return &CreatePrepDetector{meetings: meetings, preps: preps}
}

// Type implements Detector.
func (d *CreatePrepDetector) Type() models.ProposalType {
	return models.ProposalTypeCreatePrep
}

// Detect implements Detector.
func (d *CreatePrepDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	if !oc.Settings.AutoPrepKnownProspects {
		return nil, nil
	}

	horizon := time.Duration(oc.Settings.PrepReminderHours) * time.Hour
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}

	meetings, err := d.meetings.ListUpcomingMeetings(ctx, oc.Owner, horizon, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range meetings {
		m := &meetings[i]
		if m.ProspectID == nil || oc.TitleExcluded(m.Title) {
			continue
		}

		until := m.StartsAt.Sub(oc.Now)
		bucket := BucketFor(until)
		if bucket == BucketNone {
			continue
		}

		mid := m.ID
		refs := models.TriggerRefs{MeetingID: &mid}
		key := DedupeKey(models.ProposalTypeCreatePrep, refs.EntityKey(), bucket)
		if oc.NonTerminalKeys[key] {
			continue
		}

		// An existing prep document is a hard prerequisite for skipping,
		// whatever surface produced it.
		exists, err := d.preps.PrepExistsForMeeting(ctx, oc.Owner, m.ID)
		if err != nil {
			return out, err
		}
		if exists {
			continue
		}

		expires := m.StartsAt
		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypeCreatePrep,
			DedupeKey:   key,
			Priority: Priority(models.ProposalTypeCreatePrep, PriorityInputs{
				TimeToEvent: until,
			}),
			ContextData: map[string]interface{}{
				"meeting_title": m.Title,
				"starts_at":     m.StartsAt,
			},
			ExpiresAt: &expires,
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}

// ReviewSummaryDetector proposes reviewing the generated summary of an
// ended meeting whose transcript came back.
type ReviewSummaryDetector struct {
	meetings MeetingReader
}

// NewReviewSummaryDetector creates the review_meeting_summary detector.
func NewReviewSummaryDetector(meetings MeetingReader) *ReviewSummaryDetector {
	return &ReviewSummaryDetector{meetings: meetings}
}

// Type implements Detector.
func (d *ReviewSummaryDetector) Type() models.ProposalType {
	return models.ProposalTypeReviewMeetingSummary
}

// Detect implements Detector.
func (d *ReviewSummaryDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	meetings, err := d.meetings.ListEndedWithTranscript(ctx, oc.Owner, oc.Now.Add(-summaryLookback), maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range meetings {
		m := &meetings[i]
		if m.SummaryReviewed || oc.TitleExcluded(m.Title) {
			continue
		}

		mid := m.ID
		refs := models.TriggerRefs{MeetingID: &mid}
		key := DedupeKey(models.ProposalTypeReviewMeetingSummary, refs.EntityKey(), BucketNone)
		if oc.NonTerminalKeys[key] {
			continue
		}

		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypeReviewMeetingSummary,
			DedupeKey:   key,
			Priority: Priority(models.ProposalTypeReviewMeetingSummary, PriorityInputs{
				Staleness: oc.Now.Sub(m.EndsAt),
				FlowStep:  1,
			}),
			ContextData: map[string]interface{}{
				"meeting_title": m.Title,
			},
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}

// SyncCRMNotesDetector proposes pushing a reviewed meeting summary into the
// CRM. Parallel class: it never blocks, and is never blocked by, the linear
// post-meeting flow.
type SyncCRMNotesDetector struct {
	meetings MeetingReader
}

// NewSyncCRMNotesDetector creates the sync_crm_notes detector.
func NewSyncCRMNotesDetector(meetings MeetingReader) *SyncCRMNotesDetector {
	return &SyncCRMNotesDetector{meetings: meetings}
}

// Type implements Detector.
func (d *SyncCRMNotesDetector) Type() models.ProposalType {
	return models.ProposalTypeSyncCRMNotes
}

// Detect implements Detector.
func (d *SyncCRMNotesDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	meetings, err := d.meetings.ListEndedWithTranscript(ctx, oc.Owner, oc.Now.Add(-summaryLookback), maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range meetings {
		m := &meetings[i]
		if !m.SummaryReady || m.NotesSynced {
			continue
		}

		mid := m.ID
		refs := models.TriggerRefs{MeetingID: &mid}
		key := DedupeKey(models.ProposalTypeSyncCRMNotes, refs.EntityKey(), BucketNone)
		if oc.NonTerminalKeys[key] {
			continue
		}

		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypeSyncCRMNotes,
			DedupeKey:   key,
			Priority:    Priority(models.ProposalTypeSyncCRMNotes, PriorityInputs{}),
			ContextData: map[string]interface{}{
				"meeting_title": m.Title,
			},
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}
