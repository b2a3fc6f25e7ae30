package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
)

// State is the lifecycle of a Bridge.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Bridge owns one subscription on a Feed.
//
// Once Detach returns, the handler is never invoked again. A delivery that
// is running when Detach is called finishes before Detach returns, so the
// handler must not call Detach itself.
type Bridge struct {
	feed    Feed
	topic   Topic
	kind    string
	handler Handler

	mu    sync.Mutex
	state State
	done  bool
	sub   Subscription

	// held for the duration of each handler call
	deliverMu sync.Mutex
	stopped   bool
}

// NewBridge creates a detached bridge for topic. kind labels metrics.
func NewBridge(feed Feed, topic Topic, kind string, h Handler) *Bridge {
	return &Bridge{
		feed:    feed,
		topic:   topic,
		kind:    kind,
		handler: h,
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Topic returns the topic the bridge subscribes to.
func (b *Bridge) Topic() Topic {
	return b.topic
}

// Attach subscribes to the feed and blocks until the subscription is
// acknowledged. A failed attach leaves the bridge Detached and may be retried.
// Attaching a bridge that has been detached returns ErrDetached.
func (b *Bridge) Attach(ctx context.Context) error {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return ErrDetached
	}
	if b.state != StateDetached {
		b.mu.Unlock()
		return nil
	}
	b.state = StateAttaching
	b.mu.Unlock()

	sub, err := b.feed.Subscribe(ctx, b.topic, b.dispatch)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = StateDetached
		return model.Backend("live.attach", fmt.Errorf("subscribe %s: %w", b.topic, err))
	}
	if b.done {
		// detached while the subscribe was in flight
		_ = sub.Unsubscribe()
		return ErrDetached
	}
	b.sub = sub
	b.state = StateAttached
	metrics.LiveSubscriptionsActive.WithLabelValues(b.kind).Inc()
	return nil
}

// Detach releases the subscription. It is terminal and idempotent.
func (b *Bridge) Detach() error {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return nil
	}
	b.done = true
	sub := b.sub
	b.sub = nil
	wasAttached := b.state == StateAttached
	b.state = StateDetached
	b.mu.Unlock()

	b.deliverMu.Lock()
	b.stopped = true
	b.deliverMu.Unlock()

	if wasAttached {
		metrics.LiveSubscriptionsActive.WithLabelValues(b.kind).Dec()
	}
	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return model.Backend("live.detach", fmt.Errorf("unsubscribe %s: %w", b.topic, err))
	}
	return nil
}

func (b *Bridge) dispatch(ev model.ChangeEvent) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	if b.stopped {
		metrics.RecordLiveEvent(b.kind, metrics.OutcomeDropped)
		return
	}
	b.handler(ev)
}
