// Package pressure delivers host lifecycle signals to caches.
//
// The cache never polls the runtime for memory pressure itself. The host
// (an HTTP server watching cgroup limits, a mobile shell, a test) owns a Hub
// and calls MemoryWarning or EnterBackground; every subscribed cache reacts
// according to its own configuration.
package pressure

import "sync"

type Listener interface {
	OnMemoryWarning()
	OnEnterBackground()
}

type Source interface {
	// Subscribe registers l and returns a func which removes it again.
	Subscribe(l Listener) (unsubscribe func())
}

// Hub is a Source driven by explicit calls. The zero value is ready to use.
type Hub struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe(l Listener) func() {
	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = make(map[uint64]Listener)
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// MemoryWarning notifies every listener synchronously.
func (h *Hub) MemoryWarning() {
	for _, l := range h.snapshot() {
		l.OnMemoryWarning()
	}
}

// EnterBackground notifies every listener synchronously.
func (h *Hub) EnterBackground() {
	for _, l := range h.snapshot() {
		l.OnEnterBackground()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *Hub) snapshot() []Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}
	return out
}
