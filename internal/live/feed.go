// Package live reconciles pushed change events with locally held state.
//
// A Feed multiplexes topic subscriptions over one process-wide connection.
// A Bridge owns exactly one subscription and walks it through
// Detached, Attaching and Attached before ending in Detached for good.
// A Room pairs a message Bridge with a Timeline so history and live inserts
// end up in one sequence ordered by (created_at, id).
package live

import (
	"context"
	"errors"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

var (
	// ErrDetached is returned when attaching a bridge that was already detached.
	ErrDetached = errors.New("live: bridge detached")
	// ErrClosed is returned by a room that was closed while an operation was in flight.
	ErrClosed = errors.New("live: room closed")
)

// Topic selects one event type for one key.
type Topic struct {
	Type model.EventType
	Key  string
}

// MessagesTopic selects inserted-message events of a conversation.
func MessagesTopic(conversationID string) Topic {
	return Topic{Type: model.EventTypeMessageInserted, Key: conversationID}
}

// ProfileTopic selects update events of one profile.
func ProfileTopic(profileID string) Topic {
	return Topic{Type: model.EventTypeProfileUpdated, Key: profileID}
}

// TopicOf returns the topic an event is delivered on.
func TopicOf(ev model.ChangeEvent) Topic {
	return Topic{Type: ev.Type, Key: ev.Key()}
}

func (t Topic) String() string {
	return string(t.Type) + ":" + t.Key
}

// Handler receives events for a subscription.
type Handler func(model.ChangeEvent)

// Subscription is a handle returned by Feed.Subscribe.
type Subscription interface {
	Unsubscribe() error
}

// Feed is the push channel. Subscribe returns once the channel has
// acknowledged the subscription.
type Feed interface {
	Subscribe(ctx context.Context, topic Topic, h Handler) (Subscription, error)
	Publish(ctx context.Context, ev model.ChangeEvent) error
}
