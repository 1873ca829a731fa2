package progress

import (
	"sync"

	"github.com/lettermill/lettermill/internal/merge/domain"
)

const DefaultSubscriberBuffer = 16

// Hub fans progress events out to every connected stream client.
// Subscribing and unsubscribing are rare next to publishing, so the
// subscriber set is guarded by a RWMutex and iterated under a snapshot.
type Hub struct {
	mu               sync.RWMutex
	subs             map[uint64]*Subscription
	nextID           uint64
	subscriberBuffer int
}

// Subscription is one live subscriber channel. Events arrive in publish
// order. Done is signalled when the subscription ends, either by an
// explicit Close from the consumer or because the hub pruned it.
type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan domain.ProgressEvent
	done chan struct{}
	once sync.Once
}

func NewHub(subscriberBuffer int) *Hub {
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:             make(map[uint64]*Subscription),
		subscriberBuffer: subscriberBuffer,
	}
}

func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	sub := &Subscription{
		hub:  h,
		id:   id,
		ch:   make(chan domain.ProgressEvent, h.subscriberBuffer),
		done: make(chan struct{}),
	}
	h.subs[id] = sub
	return sub
}

// Publish delivers the event to every subscriber. A subscriber that has
// gone away, or whose buffer is full because nobody is draining it, is
// closed and removed from the set. Neither case affects delivery to the
// remaining subscribers or surfaces to the caller.
func (h *Hub) Publish(event domain.ProgressEvent) {
	if h == nil {
		return
	}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-sub.done:
			h.unsubscribe(sub.id)
		case sub.ch <- event:
		default:
			sub.Close()
		}
	}
}

// Count reports the current number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (s *Subscription) Events() <-chan domain.ProgressEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

// Done is signalled when the hub has dropped this subscription.
func (s *Subscription) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		close(s.done)
		s.hub.unsubscribe(s.id)
	})
}
