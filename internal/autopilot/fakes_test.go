package autopilot

import (
	"context"
	"sync"
	"time"

	"salespilot/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory ProposalStore with the same guard and dedupe
// semantics as the Mongo implementation.
type memStore struct {
	mu        sync.Mutex
	proposals map[primitive.ObjectID]*models.Proposal
}

func newMemStore() *memStore {
	return &memStore{proposals: make(map[primitive.ObjectID]*models.Proposal)}
}

func (s *memStore) seed(p models.Proposal) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.proposals[p.ID] = &p
	return p.ID
}

func (s *memStore) get(id primitive.ObjectID) *models.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.proposals[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (s *memStore) Create(ctx context.Context, proposal *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.proposals {
		if existing.UserID == proposal.UserID &&
			existing.DedupeKey == proposal.DedupeKey &&
			!existing.Status.IsTerminal() {
			return ErrDuplicateProposal
		}
	}
	proposal.ID = primitive.NewObjectID()
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusProposed
	}
	proposal.CreatedAt = time.Now().UTC()
	proposal.UpdatedAt = proposal.CreatedAt
	cp := *proposal
	s.proposals[proposal.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok || p.UserID != owner.UserID {
		return nil, ErrNotFoundOrProcessed
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListByStatus(ctx context.Context, owner models.Owner, status models.ProposalStatus, limit int64) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Proposal
	for _, p := range s.proposals {
		if p.UserID == owner.UserID && p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) ListNonTerminal(ctx context.Context, owner models.Owner) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Proposal
	for _, p := range s.proposals {
		if p.UserID == owner.UserID && !p.Status.IsTerminal() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) NonTerminalDedupeKeys(ctx context.Context, owner models.Owner) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[string]bool)
	for _, p := range s.proposals {
		if p.UserID == owner.UserID && !p.Status.IsTerminal() {
			keys[p.DedupeKey] = true
		}
	}
	return keys, nil
}

func (s *memStore) CompletedTypesByEntity(ctx context.Context, owner models.Owner, since time.Time) (map[string]map[models.ProposalType]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[models.ProposalType]bool)
	for _, p := range s.proposals {
		if p.UserID != owner.UserID || p.Status != models.ProposalStatusCompleted || p.UpdatedAt.Before(since) {
			continue
		}
		key := p.EntityKey()
		if key == "" {
			continue
		}
		if out[key] == nil {
			out[key] = make(map[models.ProposalType]bool)
		}
		out[key][p.Type] = true
	}
	return out, nil
}

func (s *memStore) guarded(owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, mutate func(*models.Proposal)) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok || p.UserID != owner.UserID {
		return nil, ErrNotFoundOrProcessed
	}
	matched := false
	for _, st := range from {
		if p.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrNotFoundOrProcessed
	}
	mutate(p)
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (s *memStore) Decide(ctx context.Context, owner models.Owner, id primitive.ObjectID, to models.ProposalStatus, reason string) (*models.Proposal, error) {
	return s.guarded(owner, id, []models.ProposalStatus{models.ProposalStatusProposed}, func(p *models.Proposal) {
		now := time.Now().UTC()
		p.Status = to
		p.DecidedAt = &now
		p.DecisionReason = reason
	})
}

func (s *memStore) Snooze(ctx context.Context, owner models.Owner, id primitive.ObjectID, until time.Time, reason string) (*models.Proposal, error) {
	return s.guarded(owner, id, []models.ProposalStatus{models.ProposalStatusProposed}, func(p *models.Proposal) {
		now := time.Now().UTC()
		p.Status = models.ProposalStatusSnoozed
		p.SnoozedUntil = &until
		p.DecidedAt = &now
		p.DecisionReason = reason
	})
}

func (s *memStore) Retry(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Proposal, error) {
	return s.guarded(owner, id, []models.ProposalStatus{models.ProposalStatusFailed}, func(p *models.Proposal) {
		now := time.Now().UTC()
		p.Status = models.ProposalStatusAccepted
		p.Error = ""
		p.ExecutionStartedAt = nil
		p.ExecutionCompletedAt = nil
		p.DecidedAt = &now
	})
}

func (s *memStore) MarkExecuting(ctx context.Context, owner models.Owner, id primitive.ObjectID) error {
	_, err := s.guarded(owner, id, []models.ProposalStatus{models.ProposalStatusAccepted}, func(p *models.Proposal) {
		now := time.Now().UTC()
		p.Status = models.ProposalStatusExecuting
		p.ExecutionStartedAt = &now
	})
	return err
}

func (s *memStore) Complete(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, artifacts []models.ProposalArtifact, markExecutionCompleted bool) error {
	_, err := s.guarded(owner, id, from, func(p *models.Proposal) {
		p.Status = models.ProposalStatusCompleted
		p.Artifacts = append(p.Artifacts, artifacts...)
		if markExecutionCompleted {
			now := time.Now().UTC()
			p.ExecutionCompletedAt = &now
		}
	})
	return err
}

func (s *memStore) Fail(ctx context.Context, owner models.Owner, id primitive.ObjectID, from []models.ProposalStatus, errMsg string, markExecutionCompleted bool) error {
	_, err := s.guarded(owner, id, from, func(p *models.Proposal) {
		p.Status = models.ProposalStatusFailed
		p.Error = errMsg
		if markExecutionCompleted {
			now := time.Now().UTC()
			p.ExecutionCompletedAt = &now
		}
	})
	return err
}

func (s *memStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.proposals {
		if p.Status == models.ProposalStatusProposed && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.Status = models.ProposalStatusExpired
			p.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *memStore) UnsnoozeDue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.proposals {
		if p.Status == models.ProposalStatusSnoozed && p.SnoozedUntil != nil && p.SnoozedUntil.Before(now) {
			p.Status = models.ProposalStatusProposed
			p.SnoozedUntil = nil
			p.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindStuckExecutions(ctx context.Context, olderThan time.Time) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Proposal
	for _, p := range s.proposals {
		switch p.Status {
		case models.ProposalStatusExecuting:
			if p.ExecutionStartedAt != nil && p.ExecutionStartedAt.Before(olderThan) {
				out = append(out, *p)
			}
		case models.ProposalStatusAccepted:
			if p.DecidedAt != nil && p.DecidedAt.Before(olderThan) {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

// --- fake domain readers ---

type fakeProspects struct {
	byID            map[primitive.ObjectID]*models.Prospect
	withoutResearch []models.Prospect
	silent          []models.Prospect
	err             error
}

func (f *fakeProspects) GetProspect(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Prospect, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, ErrNotFoundOrProcessed
}

func (f *fakeProspects) ListProspectsWithoutResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.Prospect, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.withoutResearch, nil
}

func (f *fakeProspects) ListQualifiedSilentSince(ctx context.Context, owner models.Owner, cutoff time.Time, limit int64) ([]models.Prospect, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.silent, nil
}

type fakeMeetings struct {
	byID     map[primitive.ObjectID]*models.Meeting
	upcoming []models.Meeting
	ended    []models.Meeting
	count    int64
	err      error
}

func (f *fakeMeetings) GetMeeting(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, ErrNotFoundOrProcessed
}

func (f *fakeMeetings) ListUpcomingMeetings(ctx context.Context, owner models.Owner, within time.Duration, limit int64) ([]models.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.upcoming, nil
}

func (f *fakeMeetings) ListEndedWithTranscript(ctx context.Context, owner models.Owner, since time.Time, limit int64) ([]models.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ended, nil
}

func (f *fakeMeetings) CountMeetings(ctx context.Context, owner models.Owner) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

type fakeResearch struct {
	ready      []models.ResearchBrief
	byProspect map[primitive.ObjectID]*models.ResearchBrief
	err        error
}

func (f *fakeResearch) ListReadyResearch(ctx context.Context, owner models.Owner, limit int64) ([]models.ResearchBrief, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ready, nil
}

func (f *fakeResearch) ResearchByProspect(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*models.ResearchBrief, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byProspect[prospectID], nil
}

type fakeOutreach struct {
	lastSent map[primitive.ObjectID]*time.Time
	err      error
}

func (f *fakeOutreach) LastOutreachSentAt(ctx context.Context, owner models.Owner, prospectID primitive.ObjectID) (*time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lastSent[prospectID], nil
}

type fakePreps struct {
	exists map[primitive.ObjectID]bool
	err    error
}

func (f *fakePreps) PrepExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.exists[meetingID], nil
}

type fakeFollowups struct {
	byID           map[primitive.ObjectID]*models.Followup
	due            []models.Followup
	sentForMeeting map[primitive.ObjectID]bool
	err            error
}

func (f *fakeFollowups) GetFollowup(ctx context.Context, owner models.Owner, id primitive.ObjectID) (*models.Followup, error) {
	if f.err != nil {
		return nil, f.err
	}
	if fu, ok := f.byID[id]; ok {
		return fu, nil
	}
	return nil, ErrNotFoundOrProcessed
}

func (f *fakeFollowups) ListDueFollowups(ctx context.Context, owner models.Owner, now time.Time, limit int64) ([]models.Followup, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.due, nil
}

func (f *fakeFollowups) SentFollowupExistsForMeeting(ctx context.Context, owner models.Owner, meetingID primitive.ObjectID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.sentForMeeting[meetingID], nil
}

type fakeSettings struct {
	settings *models.AutopilotSettings
	err      error
}

func (f *fakeSettings) GetSettings(ctx context.Context, owner models.Owner) (*models.AutopilotSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings != nil {
		return f.settings, nil
	}
	return models.DefaultAutopilotSettings(owner.UserID, owner.OrganizationID), nil
}

type fakeDispatcher struct {
	requests chan ExecutionRequest
	err      error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{requests: make(chan ExecutionRequest, 16)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req ExecutionRequest) error {
	if f.err != nil {
		return f.err
	}
	f.requests <- req
	return nil
}

type fakeLocker struct {
	denied bool
}

func (f *fakeLocker) AcquireLock(ctx context.Context, lockKey, lockValue string, expiration time.Duration) (bool, error) {
	return !f.denied, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	return true, nil
}

// emptyReaders returns a reader bundle that produces no candidates. The
// meeting count is non-zero so the calendar setup rule stays quiet.
func emptyReaders() Readers {
	return Readers{
		Prospects: &fakeProspects{},
		Meetings:  &fakeMeetings{count: 1},
		Research:  &fakeResearch{},
		Outreach:  &fakeOutreach{},
		Preps:     &fakePreps{},
		Followups: &fakeFollowups{},
	}
}
