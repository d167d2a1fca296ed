package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"salespilot/internal/autopilot"
	"salespilot/internal/models"
)

// maxPendingEvents is the maximum number of important events buffered per
// owner when they have no active subscribers (e.g. between disconnect and
// reconnect).
const maxPendingEvents = 50

// importantEventTypes are the event types worth buffering for offline
// owners. execution_requested is consumed by workers, not clients, so it is
// never buffered here.
var importantEventTypes = map[string]bool{
	"proposal_created":   true,
	"proposal_completed": true,
	"proposal_failed":    true,
}

// ProposalEvent is the unit delivered to subscribers.
type ProposalEvent struct {
	Type     string           `json:"type"`
	Proposal *models.Proposal `json:"proposal,omitempty"`

	// Execution payload, set only for execution_requested events.
	Execution *autopilot.ExecutionRequest `json:"execution,omitempty"`
}

// ProposalEventBus is an in-memory pub/sub for proposal events, scoped per
// owner. It decouples the engine and the lifecycle controller from the
// WebSocket lifecycle: they publish here, and any connected WS client
// subscribes.
//
// Important events (proposal_created/completed/failed) are buffered per-user
// when no subscriber is connected and drained on reconnect. The bus also
// carries execution_requested events to in-process workers, and can mirror
// them to a Redis channel for out-of-process execution pipelines.
type ProposalEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan ProposalEvent // userID → subID → chan
	pending     map[string][]ProposalEvent               // userID → buffered important events

	redis         *RedisService // optional mirror target
	mirrorChannel string
}

var (
	_ autopilot.Notifier   = (*ProposalEventBus)(nil)
	_ autopilot.Dispatcher = (*ProposalEventBus)(nil)
)

// NewProposalEventBus creates a new event bus
func NewProposalEventBus() *ProposalEventBus {
	return &ProposalEventBus{
		subscribers: make(map[string]map[string]chan ProposalEvent),
		pending:     make(map[string][]ProposalEvent),
	}
}

// EnableRedisMirror mirrors execution_requested events to a Redis pub/sub
// channel so an out-of-process execution pipeline can consume them.
func (b *ProposalEventBus) EnableRedisMirror(redis *RedisService, channel string) {
	b.redis = redis
	b.mirrorChannel = channel
}

// Subscribe creates a new event channel for a user. Pending events are NOT
// auto-drained — call DrainPending() separately so the WebSocket handler can
// format them as a structured "missed_updates" message.
func (b *ProposalEventBus) Subscribe(userID, subID string, bufSize int) <-chan ProposalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProposalEvent, bufSize)
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[string]chan ProposalEvent)
	}
	b.subscribers[userID][subID] = ch

	log.Printf("[EVENT-BUS] Subscribe: user=%s sub=%s (total=%d)", userID, subID, len(b.subscribers[userID]))
	return ch
}

// Unsubscribe removes a subscription. The channel is NOT closed — the
// subscriber's goroutine should exit via its own done signal.
func (b *ProposalEventBus) Unsubscribe(userID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conns, ok := b.subscribers[userID]; ok {
		delete(conns, subID)
		if len(conns) == 0 {
			delete(b.subscribers, userID)
		}
		log.Printf("[EVENT-BUS] Unsubscribe: user=%s sub=%s (remaining=%d)", userID, subID, len(conns))
	}
}

// DrainPending returns and clears all buffered events for a user. Called by
// the WebSocket handler on reconnect.
func (b *ProposalEventBus) DrainPending(userID string) []ProposalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.pending[userID]
	delete(b.pending, userID)

	if len(events) > 0 {
		log.Printf("[EVENT-BUS] Drained %d pending events for user %s", len(events), userID)
	}
	return events
}

// Publish sends an event to all subscribers for a user. Non-blocking — a
// full subscriber channel drops the event for that subscriber. Important
// events with no live delivery are buffered for reconnect.
func (b *ProposalEventBus) Publish(userID string, event ProposalEvent) {
	b.mu.RLock()
	conns, hasSubscribers := b.subscribers[userID]

	if hasSubscribers && len(conns) > 0 {
		delivered := false
		for _, ch := range conns {
			select {
			case ch <- event:
				delivered = true
			default:
				// Subscriber is full — skip this one
			}
		}
		b.mu.RUnlock()

		if !delivered && importantEventTypes[event.Type] {
			b.bufferEvent(userID, event)
		}
		return
	}
	b.mu.RUnlock()

	if importantEventTypes[event.Type] {
		b.bufferEvent(userID, event)
	}
}

// bufferEvent adds an important event to the user's pending queue, evicting
// the oldest entries past maxPendingEvents.
func (b *ProposalEventBus) bufferEvent(userID string, event ProposalEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[userID] = append(b.pending[userID], event)
	if len(b.pending[userID]) > maxPendingEvents {
		b.pending[userID] = b.pending[userID][len(b.pending[userID])-maxPendingEvents:]
	}
}

// SubscriberCount returns the number of active subscribers for a user
func (b *ProposalEventBus) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if conns, ok := b.subscribers[userID]; ok {
		return len(conns)
	}
	return 0
}

// PendingCount returns the number of buffered events for a disconnected user
func (b *ProposalEventBus) PendingCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.pending[userID])
}

// NotifyProposalCreated implements autopilot.Notifier.
func (b *ProposalEventBus) NotifyProposalCreated(proposal *models.Proposal) {
	b.Publish(proposal.UserID, ProposalEvent{Type: "proposal_created", Proposal: proposal})
}

// NotifyProposalCompleted implements autopilot.Notifier.
func (b *ProposalEventBus) NotifyProposalCompleted(proposal *models.Proposal) {
	b.Publish(proposal.UserID, ProposalEvent{Type: "proposal_completed", Proposal: proposal})
}

// NotifyProposalFailed implements autopilot.Notifier.
func (b *ProposalEventBus) NotifyProposalFailed(proposal *models.Proposal) {
	b.Publish(proposal.UserID, ProposalEvent{Type: "proposal_failed", Proposal: proposal})
}

// Dispatch implements autopilot.Dispatcher: the execution request is
// published to the owner's in-process subscribers and, when a mirror is
// configured, to the Redis execution channel.
func (b *ProposalEventBus) Dispatch(ctx context.Context, req autopilot.ExecutionRequest) error {
	b.Publish(req.Owner.UserID, ProposalEvent{Type: "execution_requested", Execution: &req})

	if b.redis != nil && b.mirrorChannel != "" {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return b.redis.Publish(ctx, b.mirrorChannel, data)
	}
	return nil
}
