package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-forum/internal/domain"
)

// Message types
const (
	MessageTypePostUpdate    = "post_update"
	MessageTypeFeedRefreshed = "feed_refreshed"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Category  string      `json:"category,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`

	// includeAll also delivers the message to subscribers of the combined feed
	includeAll bool
}

// PostUpdate carries a post whose counters or content changed
type PostUpdate struct {
	Category string      `json:"category"`
	Post     domain.Post `json:"post"`
}

// FeedRefreshed tells clients a cached feed was recomputed
type FeedRefreshed struct {
	Category string              `json:"category"`
	Sort     domain.SortStrategy `json:"sort"`
	Total    int                 `json:"total"`
}

// Hub tracks connected clients and their category subscriptions
type Hub struct {
	// Subscribed clients by category
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client   *Client
	category string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.removeClient(client)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.allClients[req.client]; ok {
				if _, ok := h.clients[req.category]; !ok {
					h.clients[req.category] = make(map[*Client]bool)
				}
				h.clients[req.category][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "category", req.category)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			h.dropSubscription(req.client, req.category)
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "category", req.category)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)
	for category := range h.clients {
		h.dropSubscription(client, category)
	}
	close(client.send)
	h.logger.Debug("client unregistered", "client_id", client.id)
}

// dropSubscription must be called with mu held
func (h *Hub) dropSubscription(client *Client, category string) {
	clients, ok := h.clients[category]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, category)
	}
}

// recipients must be called with mu held
func (h *Hub) recipients(message *Message) map[*Client]bool {
	if message.Category == "" {
		return h.allClients
	}

	targets := make(map[*Client]bool, len(h.clients[message.Category]))
	for client := range h.clients[message.Category] {
		targets[client] = true
	}
	if message.includeAll && message.Category != domain.CategoryAll {
		for client := range h.clients[domain.CategoryAll] {
			targets[client] = true
		}
	}
	return targets
}

// broadcastMessage sends a message to every interested client
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.recipients(message) {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", message.Type)
	}
}

// BroadcastPostUpdate notifies subscribers of the post's category and of
// the combined feed
func (h *Hub) BroadcastPostUpdate(category string, post domain.Post) {
	h.enqueue(&Message{
		Type:     MessageTypePostUpdate,
		Category: category,
		Data: PostUpdate{
			Category: category,
			Post:     post,
		},
		Timestamp:  time.Now(),
		includeAll: true,
	})
}

// BroadcastFeedRefreshed notifies subscribers of category that a feed was recomputed
func (h *Hub) BroadcastFeedRefreshed(category string, strategy domain.SortStrategy, total int) {
	h.enqueue(&Message{
		Type:     MessageTypeFeedRefreshed,
		Category: category,
		Data: FeedRefreshed{
			Category: category,
			Sort:     strategy,
			Total:    total,
		},
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a category subscription
func (h *Hub) Subscribe(client *Client, category string) {
	h.subscribe <- &subscriptionRequest{
		client:   client,
		category: category,
	}
}

// Unsubscribe removes a client from a category subscription
func (h *Hub) Unsubscribe(client *Client, category string) {
	h.unsubscribe <- &subscriptionRequest{
		client:   client,
		category: category,
	}
}

// GetSubscriberCount returns the number of subscribers for a category
func (h *Hub) GetSubscriberCount(category string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[category])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// GetCategoryStats returns subscriber counts keyed by category
func (h *Hub) GetCategoryStats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := make(map[string]int, len(h.clients))
	for category, clients := range h.clients {
		stats[category] = len(clients)
	}
	return stats
}
