package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Course event types
const (
	EventAvailabilityToggled = "availability.toggled"
	EventCapacityUpdated     = "capacity.updated"
	EventReservationCreated  = "reservation.created"
	EventReservationDeleted  = "reservation.deleted"
	EventAnnouncementCreated = "announcement.created"
	EventAnnouncementDeleted = "announcement.deleted"
	EventCommentCreated      = "comment.created"
)

// Event is pushed to every client watching a course
type Event struct {
	Type      string      `json:"type"`
	CourseID  int64       `json:"courseId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts course events to them
type Hub struct {
	// Registered clients organized by course ID
	clients map[int64]map[*Client]struct{}

	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// guards clients for readers outside Run
	mu sync.RWMutex

	// called with the new number of connected clients
	onClientsChanged func(int)

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		broadcast:  make(chan *Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// OnClientsChanged sets a callback invoked from Run whenever a client connects or leaves
func (h *Hub) OnClientsChanged(fn func(int)) {
	h.onClientsChanged = fn
}

// Run handles registrations and broadcasts until ctx is cancelled, then
// closes every client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.courseID]; !ok {
		h.clients[client.courseID] = make(map[*Client]struct{})
	}
	h.clients[client.courseID][client] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	h.notifyCount(total)
	h.logger.Info().
		Int64("courseID", client.courseID).
		Int64("userID", client.userID).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.courseID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.courseID)
	}
	total := h.countLocked()
	h.mu.Unlock()

	h.notifyCount(total)
	h.logger.Info().
		Int64("courseID", client.courseID).
		Int64("userID", client.userID).
		Msg("Client unregistered")
}

// broadcastEvent sends an event to all clients of its course. Clients whose
// send buffer is full are dropped.
func (h *Hub) broadcastEvent(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal event for broadcast")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[event.CourseID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn().Int64("userID", client.userID).Msg("Dropping slow websocket client")
		h.unregisterClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for courseID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, courseID)
	}
	h.mu.Unlock()
	h.notifyCount(0)
}

func (h *Hub) countLocked() int {
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}

func (h *Hub) notifyCount(n int) {
	if h.onClientsChanged != nil {
		h.onClientsChanged(n)
	}
}

// Publish queues an event for the clients of courseID. It never blocks: when
// the queue is full or the hub has stopped the event is dropped.
func (h *Hub) Publish(courseID int64, eventType string, payload interface{}) {
	event := &Event{
		Type:      eventType,
		CourseID:  courseID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	select {
	case <-h.done:
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("type", eventType).Int64("courseID", courseID).Msg("Event queue full, dropping event")
	}
}

// GetClientsCount returns the number of connected clients for a course
func (h *Hub) GetClientsCount(courseID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[courseID])
}
