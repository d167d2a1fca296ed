package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"salespilot/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// AutopilotWebSocketHandler streams proposal lifecycle events to connected
// clients over /ws/autopilot.
type AutopilotWebSocketHandler struct {
	eventBus *services.ProposalEventBus
	metrics  *services.Metrics
}

// NewAutopilotWebSocketHandler creates a new autopilot WebSocket handler
func NewAutopilotWebSocketHandler(eventBus *services.ProposalEventBus, metrics *services.Metrics) *AutopilotWebSocketHandler {
	return &AutopilotWebSocketHandler{eventBus: eventBus, metrics: metrics}
}

// autopilotClientMessage represents a message from the client
type autopilotClientMessage struct {
	Type string `json:"type"`
}

// autopilotServerMessage represents a message sent to the client
type autopilotServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Handle is the WebSocket handler for /ws/autopilot
func (h *AutopilotWebSocketHandler) Handle(c *websocket.Conn) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		log.Printf("[AUTOPILOT-WS] Connection rejected: missing or invalid user_id")
		_ = c.WriteJSON(autopilotServerMessage{Type: "error", Data: map[string]string{"message": "unauthorized"}})
		return
	}
	connID := uuid.New().String()

	log.Printf("[AUTOPILOT-WS] Connection opened: %s (user: %s)", connID, userID)
	if h.metrics != nil {
		h.metrics.RecordWebSocketConnect()
	}

	writeChan := make(chan autopilotServerMessage, 100)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	// Write mutex — serializes WebSocket writes (JSON messages + protocol pings)
	var writeMu sync.Mutex

	// Write loop — sole consumer of writeChan, exits on done signal
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[AUTOPILOT-WS] Write loop recovered for %s: %v", connID, r)
			}
		}()
		for {
			select {
			case <-done:
				return
			case msg := <-writeChan:
				writeMu.Lock()
				err := c.WriteJSON(msg)
				writeMu.Unlock()
				if err != nil {
					log.Printf("[AUTOPILOT-WS] Write error for %s: %v", connID, err)
					return
				}
			}
		}
	}()

	// Ping loop — uses write mutex to avoid concurrent writes
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := c.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Subscribe to the event bus and forward proposal events to this client
	eventCh := h.eventBus.Subscribe(userID, connID, 100)
	go func() {
		for {
			select {
			case <-done:
				return
			case event := <-eventCh:
				// execution_requested is a worker concern, not a client one
				if event.Type == "execution_requested" {
					continue
				}
				select {
				case <-done:
					return
				case writeChan <- autopilotServerMessage{Type: event.Type, Data: event.Proposal}:
				}
			}
		}
	}()

	defer func() {
		closeDone()
		h.eventBus.Unsubscribe(userID, connID)
		if h.metrics != nil {
			h.metrics.RecordWebSocketDisconnect()
		}
		log.Printf("[AUTOPILOT-WS] Connection closed: %s", connID)
	}()

	writeChan <- autopilotServerMessage{Type: "connected"}

	// Drain events that arrived while the user was disconnected
	h.sendMissedUpdates(userID, writeChan)

	// Read loop
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			log.Printf("[AUTOPILOT-WS] Read error for %s: %v", connID, err)
			break
		}

		var clientMsg autopilotClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			writeChan <- autopilotServerMessage{
				Type: "error",
				Data: map[string]string{"message": "invalid message format"},
			}
			continue
		}

		switch clientMsg.Type {
		case "ping":
			writeChan <- autopilotServerMessage{Type: "pong"}
		default:
			writeChan <- autopilotServerMessage{
				Type: "error",
				Data: map[string]string{"message": "unknown message type: " + clientMsg.Type},
			}
		}
	}
}

// sendMissedUpdates drains any pending events for the user and sends them as
// a single "missed_updates" message.
func (h *AutopilotWebSocketHandler) sendMissedUpdates(userID string, writeChan chan autopilotServerMessage) {
	pending := h.eventBus.DrainPending(userID)
	if len(pending) == 0 {
		return
	}

	log.Printf("[AUTOPILOT-WS] Sending %d missed updates to user %s", len(pending), userID)
	writeChan <- autopilotServerMessage{
		Type: "missed_updates",
		Data: map[string]interface{}{
			"updates": pending,
			"count":   len(pending),
		},
	}
}
