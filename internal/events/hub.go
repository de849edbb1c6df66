package events

import "sync"

// Hub distributes events to any number of subscribers. A nil *Hub is safe to
// publish to, which lets callers skip nil checks when notifications are
// disabled.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	buffer      int
	closed      bool
}

// Subscriber receives events on a buffered channel until closed.
type Subscriber struct {
	hub    *Hub
	ch     chan Event
	once   sync.Once
	missed int
}

// NewHub creates a hub whose subscribers buffer up to buffer events each.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		buffer:      buffer,
	}
}

// Subscribe registers a new subscriber. Callers must Close it when done.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{hub: h, ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Publish delivers the event to every subscriber without blocking. Events for
// subscribers with a full buffer are dropped.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			sub.missed++
		}
	}
}

// SubscriberCount reports how many subscribers are attached.
func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close detaches all subscribers and rejects future ones.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, sub)
	}
}

// Events returns the subscriber's receive channel. The channel closes when
// the subscriber or the hub shuts down.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscriber from the hub and closes its channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if _, ok := s.hub.subscribers[s]; ok {
			delete(s.hub.subscribers, s)
			close(s.ch)
		}
	})
}

// Missed reports how many events were dropped because the subscriber's
// buffer was full.
func (s *Subscriber) Missed() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.missed
}
