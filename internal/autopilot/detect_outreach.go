package autopilot

import (
	"context"
	"time"

	"salespilot/internal/models"
)

// PrepareOutreachDetector proposes drafting outreach to qualified prospects
// that have been silent past the owner's cooldown.
type PrepareOutreachDetector struct {
	prospects ProspectReader
	outreach  OutreachReader
}

// NewPrepareOutreachDetector creates the prepare_outreach detector.
func NewPrepareOutreachDetector(prospects ProspectReader, outreach OutreachReader) *PrepareOutreachDetector {
	return &PrepareOutreachDetector{prospects: prospects, outreach: outreach}
}

// Type implements Detector.
func (d *PrepareOutreachDetector) Type() models.ProposalType {
	return models.ProposalTypePrepareOutreach
}

// Detect implements Detector.
func (d *PrepareOutreachDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	cooldown := time.Duration(oc.Settings.OutreachCooldownDays) * 24 * time.Hour
	if cooldown <= 0 {
		cooldown = 14 * 24 * time.Hour
	}
	cutoff := oc.Now.Add(-cooldown)

	prospects, err := d.prospects.ListQualifiedSilentSince(ctx, oc.Owner, cutoff, maxCandidatesPerDetector)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for i := range prospects {
		prospect := &prospects[i]
		pid := prospect.ID
		refs := models.TriggerRefs{ProspectID: &pid}

		key := DedupeKey(models.ProposalTypePrepareOutreach, refs.EntityKey(), BucketNone)
		if oc.NonTerminalKeys[key] {
			continue
		}

		// The cooldown also counts messages sent outside the engine.
		lastSent, err := d.outreach.LastOutreachSentAt(ctx, oc.Owner, prospect.ID)
		if err != nil {
			return out, err
		}
		if lastSent != nil && lastSent.After(cutoff) {
			continue
		}

		var staleness time.Duration
		if prospect.LastContactedAt != nil {
			staleness = oc.Now.Sub(*prospect.LastContactedAt)
		}

		out = append(out, Candidate{
			TriggerRefs: refs,
			Type:        models.ProposalTypePrepareOutreach,
			DedupeKey:   key,
			Priority: Priority(models.ProposalTypePrepareOutreach, PriorityInputs{
				DealValue:      prospect.DealValue,
				ProspectStatus: prospect.Status,
				Staleness:      staleness,
				FlowStep:       2,
			}),
			ContextData: map[string]interface{}{
				"prospect_name":    prospect.Name,
				"prospect_company": prospect.Company,
			},
		})
		if len(out) >= maxCandidatesPerDetector {
			break
		}
	}

	return out, nil
}
