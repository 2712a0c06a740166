package ws

import "sync"

// Subscriber abstracts a connected observer.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans state-change payloads out to every connected observer. There is no
// per-observer filtering and no delivery guarantee; a subscriber that misses a
// payload requests a fresh snapshot on reconnect.
type Hub struct {
	mu        sync.RWMutex
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	done      chan struct{}
}

// NewHub creates a running Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
		case client := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.Send(payload); err != nil {
					c.Close()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			return
		}
	}
}

// Register adds an observer.
func (h *Hub) Register(client Subscriber) {
	h.register <- client
}

// Unregister removes an observer.
func (h *Hub) Unregister(client Subscriber) {
	h.unreg <- client
}

// Broadcast sends payload to every observer, best effort.
func (h *Hub) Broadcast(payload []byte) {
	h.broadcast <- payload
}

// Count reports the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the fan-out loop and drops all observers.
func (h *Hub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
	}
	h.clients = make(map[Subscriber]struct{})
}
