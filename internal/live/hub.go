package live

import (
	"context"
	"sync"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

// Hub is an in-process Feed. Publish delivers synchronously on the
// publisher's goroutine, in subscription order.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[Topic]map[uint64]Handler
	order  map[Topic][]uint64
}

var _ Feed = (*Hub)(nil)

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[Topic]map[uint64]Handler),
		order:  make(map[Topic][]uint64),
	}
}

func (h *Hub) Subscribe(ctx context.Context, topic Topic, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[uint64]Handler)
		h.topics[topic] = subs
	}
	subs[id] = handler
	h.order[topic] = append(h.order[topic], id)
	h.mu.Unlock()

	return &hubSubscription{hub: h, topic: topic, id: id}, nil
}

func (h *Hub) Publish(_ context.Context, ev model.ChangeEvent) error {
	topic := TopicOf(ev)

	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.topics[topic]))
	for _, id := range h.order[topic] {
		if fn, ok := h.topics[topic][id]; ok {
			handlers = append(handlers, fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) removeLocked(topic Topic, id uint64) {
	subs := h.topics[topic]
	if subs == nil {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.topics, topic)
		delete(h.order, topic)
		return
	}
	ids := h.order[topic]
	for i, v := range ids {
		if v == id {
			h.order[topic] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

type hubSubscription struct {
	hub   *Hub
	topic Topic
	id    uint64
	once  sync.Once
}

func (s *hubSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		s.hub.removeLocked(s.topic, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
