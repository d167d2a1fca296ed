package autopilot

import (
	"context"
	"time"

	"salespilot/internal/models"
)

// researchMeetingHorizon is how far ahead the start-research rule looks for
// meetings whose prospect still lacks research.
const researchMeetingHorizon = 7 * 24 * time.Hour

// StartResearchDetector proposes researching prospects that have none yet:
// either a prospect linked to an upcoming meeting, or a recently added
// prospect with no brief.
type StartResearchDetector struct {
	prospects ProspectReader
	meetings  MeetingReader
}

// NewStartResearchDetector creates the start_research detector.
func NewStartResearchDetector(prospects ProspectReader, meetings MeetingReader) *StartResearchDetector {
	return &StartResearchDetector{prospects: prospects, meetings: meetings}
}

// Type implements Detector.
func (d *StartResearchDetector) Type() models.ProposalType {
	return models.ProposalTypeStartResearch
}

// Detect implements Detector.
func (d *StartResearchDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	if !oc.Settings.AutoResearchNewMeetings {
		return nil, nil
	}

	var out []Candidate
	seen := make(map[string]bool)

	// Prospects tied to upcoming meetings come first — they are the most
	// time-sensitive research targets.
	meetings, err := d.meetings.ListUpcomingMeetings(ctx, oc.Owner, researchMeetingHorizon, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}
	for _, m := range meetings {
		if m.ProspectID == nil || oc.TitleExcluded(m.Title) {
			continue
		}
		prospect, err := d.prospects.GetProspect(ctx, oc.Owner, *m.ProspectID)
		if err != nil || prospect == nil || prospect.HasResearch {
			continue
		}
		if c, ok := d.candidateFor(prospect, oc, m.StartsAt.Sub(oc.Now)); ok && !seen[c.DedupeKey] {
			seen[c.DedupeKey] = true
			out = append(out, c)
		}
		if len(out) >= maxCandidatesPerDetector {
			return out, nil
		}
	}

	prospects, err := d.prospects.ListProspectsWithoutResearch(ctx, oc.Owner, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}
	for i := range prospects {
		if c, ok := d.candidateFor(&prospects[i], oc, 0); ok && !seen[c.DedupeKey] {
			seen[c.DedupeKey] = true
			out = append(out, c)
		}
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}

func (d *StartResearchDetector) candidateFor(prospect *models.Prospect, oc *OwnerContext, timeToMeeting time.Duration) (Candidate, bool) {
	pid := prospect.ID
	refs := models.TriggerRefs{ProspectID: &pid}
	entityKey := refs.EntityKey()

	// A completed research pass within the window is a hard prerequisite
	// for skipping — the same situation was already handled.
	if oc.HasCompleted(entityKey, models.ProposalTypeStartResearch) {
		return Candidate{}, false
	}

	key := DedupeKey(models.ProposalTypeStartResearch, entityKey, BucketNone)
	if oc.NonTerminalKeys[key] {
		return Candidate{}, false
	}

	var staleness time.Duration
	if prospect.LastContactedAt != nil {
		staleness = oc.Now.Sub(*prospect.LastContactedAt)
	}

	return Candidate{
		TriggerRefs: refs,
		Type:        models.ProposalTypeStartResearch,
		DedupeKey:   key,
		Priority: Priority(models.ProposalTypeStartResearch, PriorityInputs{
			TimeToEvent:    timeToMeeting,
			DealValue:      prospect.DealValue,
			ProspectStatus: prospect.Status,
			Staleness:      staleness,
		}),
		ContextData: map[string]interface{}{
			"prospect_name":    prospect.Name,
			"prospect_company": prospect.Company,
		},
	}, true
}

// ReviewResearchDetector proposes reviewing research briefs that became
// ready but were never looked at.
type ReviewResearchDetector struct {
	research ResearchReader
}

// NewReviewResearchDetector creates the review_research detector.
func NewReviewResearchDetector(research ResearchReader) *ReviewResearchDetector {
	return &ReviewResearchDetector{research: research}
}

// Type implements Detector.
func (d *ReviewResearchDetector) Type() models.ProposalType {
	return models.ProposalTypeReviewResearch
}

// Detect implements Detector.
func (d *ReviewResearchDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	briefs, err := d.research.ListReadyResearch(ctx, oc.Owner, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range briefs {
		brief := &briefs[i]
		pid := brief.ProspectID
		rid := brief.ID
		refs := models.TriggerRefs{ProspectID: &pid, ResearchID: &rid}

		key := DedupeKey(models.ProposalTypeReviewResearch, refs.EntityKey(), BucketNone)
		if oc.NonTerminalKeys[key] {
			continue
		}

		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypeReviewResearch,
			DedupeKey:   key,
			Priority: Priority(models.ProposalTypeReviewResearch, PriorityInputs{
				Staleness: oc.Now.Sub(brief.UpdatedAt),
				FlowStep:  1,
			}),
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}
