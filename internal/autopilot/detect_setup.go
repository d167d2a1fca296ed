package autopilot

import (
	"context"

	"salespilot/internal/models"
)

// ConnectCalendarDetector raises a single setup proposal for owners who
// enabled autopilot but never synced a calendar. It is its own proposal
// type — the catalog never reuses a type for an unrelated purpose.
type ConnectCalendarDetector struct {
	meetings MeetingReader
}

// NewConnectCalendarDetector creates the connect_calendar detector.
func NewConnectCalendarDetector(meetings MeetingReader) *ConnectCalendarDetector {
	return &ConnectCalendarDetector{meetings: meetings}
}

// Type implements Detector.
func (d *ConnectCalendarDetector) Type() models.ProposalType {
	return models.ProposalTypeConnectCalendar
}

// Detect implements Detector.
func (d *ConnectCalendarDetector) Detect(ctx context.Context, oc *OwnerContext) ([]Candidate, error) {
	count, err := d.meetings.CountMeetings(ctx, oc.Owner)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	key := DedupeKey(models.ProposalTypeConnectCalendar, "user:"+oc.Owner.UserID, BucketNone)
	if oc.NonTerminalKeys[key] {
		return nil, nil
	}

	return []Candidate{{
		Type:      models.ProposalTypeConnectCalendar,
		DedupeKey: key,
		Priority:  Priority(models.ProposalTypeConnectCalendar, PriorityInputs{}),
	}}, nil
}
