// Package chat fans chat messages out to the websocket subscribers of a connection.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/sirupsen/logrus"
)

// Bus carries messages and presence across service instances.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func([]byte)) error
	Touch(ctx context.Context, userID uuid.UUID) error
	Leave(ctx context.Context, userID uuid.UUID) error
	Presence(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}

// Subscriber is one live websocket attached to a connection.
type Subscriber struct {
	UserID       uuid.UUID
	ConnectionID uuid.UUID
	// OutChan is drained by the socket's write pump.
	OutChan chan map[string]interface{}
}

func NewSubscriber(userID, connectionID uuid.UUID) *Subscriber {
	return &Subscriber{
		UserID:       userID,
		ConnectionID: connectionID,
		OutChan:      make(chan map[string]interface{}, 16),
	}
}

// Send queues msg without blocking; a full queue drops the message.
func (s *Subscriber) Send(msg map[string]interface{}) bool {
	select {
	case s.OutChan <- msg:
		return true
	default:
		return false
	}
}

// WriteError queues an error frame for the client.
func (s *Subscriber) WriteError(message string) {
	s.Send(map[string]interface{}{"type": "error", "message": message})
}

type envelope struct {
	ConnectionID uuid.UUID           `json:"connectionId"`
	Message      *models.ChatMessage `json:"message"`
}

// Hub tracks subscribers per connection. A nil Bus keeps delivery and
// presence inside this process.
type Hub struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]map[*Subscriber]struct{}
	online   map[uuid.UUID]int
	lastSeen map[uuid.UUID]time.Time

	bus    Bus
	logger *logrus.Logger
}

func NewHub(bus Bus, logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[*Subscriber]struct{}),
		online:   make(map[uuid.UUID]int),
		lastSeen: make(map[uuid.UUID]time.Time),
		bus:      bus,
		logger:   logger,
	}
}

// Run relays bus traffic to local subscribers until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	return h.bus.Subscribe(ctx, func(payload []byte) {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			h.logger.WithError(err).Warn("dropping malformed chat envelope")
			return
		}
		h.deliver(env.ConnectionID, env.Message)
	})
}

func (h *Hub) Join(ctx context.Context, s *Subscriber) {
	h.mu.Lock()
	room, ok := h.rooms[s.ConnectionID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[s.ConnectionID] = room
	}
	room[s] = struct{}{}
	h.online[s.UserID]++
	h.mu.Unlock()

	h.Heartbeat(ctx, s.UserID)
}

func (h *Hub) Leave(ctx context.Context, s *Subscriber) {
	h.mu.Lock()
	if room, ok := h.rooms[s.ConnectionID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, s.ConnectionID)
		}
	}
	h.online[s.UserID]--
	stillOnline := h.online[s.UserID] > 0
	if !stillOnline {
		delete(h.online, s.UserID)
	}
	h.lastSeen[s.UserID] = time.Now().UTC()
	h.mu.Unlock()

	if h.bus != nil && !stillOnline {
		if err := h.bus.Leave(ctx, s.UserID); err != nil {
			h.logger.WithError(err).WithField("user", s.UserID).Warn("presence leave failed")
		}
	}
}

// Heartbeat refreshes userID's shared presence.
func (h *Hub) Heartbeat(ctx context.Context, userID uuid.UUID) {
	h.mu.Lock()
	h.lastSeen[userID] = time.Now().UTC()
	h.mu.Unlock()

	if h.bus == nil {
		return
	}
	if err := h.bus.Touch(ctx, userID); err != nil {
		h.logger.WithError(err).WithField("user", userID).Warn("presence heartbeat failed")
	}
}

// Broadcast delivers msg to every subscriber of its connection, across
// instances when a Bus is configured.
func (h *Hub) Broadcast(ctx context.Context, msg *models.ChatMessage) {
	if h.bus == nil {
		h.deliver(msg.ConnectionID, msg)
		return
	}

	payload, err := json.Marshal(envelope{ConnectionID: msg.ConnectionID, Message: msg})
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal chat envelope")
		return
	}
	if err := h.bus.Publish(ctx, payload); err != nil {
		h.logger.WithError(err).Warn("chat publish failed, delivering locally")
		h.deliver(msg.ConnectionID, msg)
	}
}

func (h *Hub) deliver(connectionID uuid.UUID, msg *models.ChatMessage) {
	frame := map[string]interface{}{"type": "message", "message": msg}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.rooms[connectionID] {
		if !s.Send(frame) {
			h.logger.WithFields(logrus.Fields{
				"user":       s.UserID,
				"connection": connectionID,
			}).Warn("subscriber queue full, dropping chat frame")
		}
	}
}

// Presence reports the status of each id.
func (h *Hub) Presence(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	if h.bus != nil {
		return h.bus.Presence(ctx, ids)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uuid.UUID]models.Presence, len(ids))
	for _, id := range ids {
		p := models.Presence{Online: h.online[id] > 0}
		if seen, ok := h.lastSeen[id]; ok {
			p.LastSeen = &seen
		}
		out[id] = p
	}
	return out, nil
}

// Subscribers returns how many sockets are attached to connectionID.
func (h *Hub) Subscribers(connectionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[connectionID])
}
