package websocket

import (
	"sync"

	"github.com/isdelr/nukta-be/internal/models"
	"github.com/rs/zerolog/log"
)

const broadcastBuffer = 64

// Hub maintains the set of feed subscribers and broadcasts post events to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Encoded messages waiting to be fanned out.
	broadcast chan []byte

	joins  chan *Client
	leaves chan *Client

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, broadcastBuffer),
		joins:     make(chan *Client),
		leaves:    make(chan *Client),
		clients:   make(map[*Client]bool),
		done:      make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.joins:
			h.clients[client] = true
			log.Debug().Int("total_clients", len(h.clients)).Msg("Feed client connected")
		case client := <-h.leaves:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Debug().Int("total_clients", len(h.clients)).Msg("Feed client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer: drop it rather than stall the feed.
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Stop ends Run and disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues a post event for every subscriber. It never blocks; when
// the queue is full the event is dropped.
func (h *Hub) Publish(e models.PostEvent) {
	msg, err := NewPostEventMessage(e)
	if err != nil {
		log.Error().Err(err).Str("slug", e.Slug).Msg("Failed to encode feed event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Warn().Str("action", e.Action).Str("slug", e.Slug).Msg("Feed queue full, dropping event")
	}
}

// Join registers a client. It reports false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.joins <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.leaves <- c:
	case <-h.done:
	}
}
