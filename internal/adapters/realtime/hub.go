package realtime

import (
	"log/slog"
	"sync"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

const (
	EventPollUpdated   = "poll_updated"
	EventPollCancelled = "poll_cancelled"
	EventException     = "exception"
)

// Event is one outbound message on a poll connection.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Exception is the payload of an exception event.
type Exception struct {
	Type    domain.ErrorKind `json:"type"`
	Message string           `json:"message"`
}

func PollUpdated(poll *domain.Poll) Event {
	return Event{Name: EventPollUpdated, Data: poll}
}

func PollCancelled() Event {
	return Event{Name: EventPollCancelled}
}

func ExceptionEvent(kind domain.ErrorKind, message string) Event {
	return Event{Name: EventException, Data: Exception{Type: kind, Message: message}}
}

// Member is a live connection that can sit in a room. Deliver must not
// block; it reports false when the member cannot keep up. Evict closes the
// connection after any queued events have been written.
type Member interface {
	Deliver(Event) bool
	Evict()
}

// Hub tracks which members are connected to which poll. Rooms live only in
// memory and are rebuilt as clients reconnect.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Member]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[Member]struct{}),
		logger: logger,
	}
}

// Join adds m to the room of pollID and returns the room size.
func (h *Hub) Join(pollID string, m Member) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[pollID]
	if !ok {
		room = make(map[Member]struct{})
		h.rooms[pollID] = room
	}
	room[m] = struct{}{}
	return len(room)
}

// Leave removes m from the room of pollID and returns the room size. Empty
// rooms are dropped.
func (h *Hub) Leave(pollID string, m Member) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[pollID]
	if !ok {
		return 0
	}
	delete(room, m)
	if len(room) == 0 {
		delete(h.rooms, pollID)
	}
	return len(room)
}

func (h *Hub) RoomSize(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pollID])
}

// Broadcast pushes a snapshot of poll to every member of its room. Members
// whose queue is full are evicted.
func (h *Hub) Broadcast(poll *domain.Poll) {
	if poll == nil {
		return
	}

	event := PollUpdated(poll)
	for _, m := range h.members(poll.ID) {
		if !m.Deliver(event) {
			h.logger.Warn("evicting slow connection", "poll_id", poll.ID)
			h.Leave(poll.ID, m)
			m.Evict()
		}
	}
}

// Cancel sends the cancellation signal to every member of the room and
// tears the room down.
func (h *Hub) Cancel(pollID string) {
	h.mu.Lock()
	room := h.rooms[pollID]
	delete(h.rooms, pollID)
	h.mu.Unlock()

	event := PollCancelled()
	for m := range room {
		m.Deliver(event)
		m.Evict()
	}
	h.logger.Debug("room closed", "poll_id", pollID, "members", len(room))
}

func (h *Hub) members(pollID string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[pollID]
	out := make([]Member, 0, len(room))
	for m := range room {
		out = append(out, m)
	}
	return out
}
