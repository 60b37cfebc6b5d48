package sse

import "sync"

// Message is one event pushed to connected moderation screens.
type Message struct {
	Event string
	Data  []byte
}

// Client is one connected listener. Messages are dropped rather than queued
// when the client's channel is full.
type Client struct {
	ID       string
	messages chan *Message
	once     sync.Once
}

// Messages returns the client's receive channel.
func (c *Client) Messages() <-chan *Message {
	return c.messages
}

// Close closes the client's channel. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.messages) })
}

// Hub fans moderation events out to subscribed clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Subscribe registers a new client under id, replacing any previous client
// with the same id.
func (h *Hub) Subscribe(id string) *Client {
	c := &Client{ID: id, messages: make(chan *Message, 16)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.clients[id]; ok {
		prev.Close()
	}
	h.clients[id] = c
	return c
}

// Unsubscribe removes and closes a client.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.Close()
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data []byte) {
	msg := &Message{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		trySend(c, msg)
	}
}

// Stop closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, msg *Message) bool {
	select {
	case c.messages <- msg:
		return true
	default:
		return false
	}
}
