package stream

import (
	"context"
	"sync"
	"time"
)

// DecisionEvent describes one evaluated permission check for live observers
// (SSE subscribers on the events endpoint).
type DecisionEvent struct {
	VaultID    string    `json:"vault_id"`
	Resource   string    `json:"resource"`
	Permission string    `json:"permission"`
	Subject    string    `json:"subject"`
	Allowed    bool      `json:"allowed"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs decision events to all active subscribers. Publishing
// never blocks: a subscriber that cannot keep up loses events rather than
// stalling the request path.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan DecisionEvent
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan DecisionEvent)}
}

// Publish delivers the event to every subscriber with room in its buffer.
func (s *Stream) Publish(ev DecisionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a buffered listener that is removed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan DecisionEvent {
	ch := make(chan DecisionEvent, 16)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Subscribers reports the number of active listeners.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
