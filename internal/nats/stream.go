package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

const (
	// StreamName is the name of the change-event stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all change-event subjects.
	SubjectPrefix = "chat"
)

// EnsureStream ensures the change-event stream exists. The stream keeps a
// replayable log of events; live delivery goes through core subscriptions.
func (c *Client) EnsureStream(ctx context.Context) error {
	_, err := c.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Inserted messages and profile updates",
	})
	if err != nil && !errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Subject returns the subject a topic is carried on.
func Subject(topic live.Topic) (string, error) {
	if err := validToken(topic.Key); err != nil {
		return "", err
	}
	switch topic.Type {
	case model.EventTypeMessageInserted:
		return fmt.Sprintf("%s.conv.%s.msg.inserted", SubjectPrefix, topic.Key), nil
	case model.EventTypeProfileUpdated:
		return fmt.Sprintf("%s.profile.%s.updated", SubjectPrefix, topic.Key), nil
	}
	return "", model.Validation("nats.subject", fmt.Sprintf("unknown event type %q", topic.Type))
}

func validToken(key string) error {
	if key == "" {
		return model.Validation("nats.subject", "empty topic key")
	}
	if strings.ContainsAny(key, ".*> \t\r\n") {
		return model.Validation("nats.subject", fmt.Sprintf("topic key %q is not a subject token", key))
	}
	return nil
}

// Feed is a live.Feed over the shared connection.
type Feed struct {
	client *Client
}

var _ live.Feed = (*Feed)(nil)

// NewFeed creates a feed on client.
func NewFeed(client *Client) *Feed {
	return &Feed{client: client}
}

// Publish appends ev to the stream. Core subscribers on the subject receive it as well.
func (f *Feed) Publish(ctx context.Context, ev model.ChangeEvent) error {
	subject, err := Subject(live.TopicOf(ev))
	if err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.client.JetStream().Publish(ctx, subject, data); err != nil {
		return model.Backend("nats.publish", fmt.Errorf("failed to publish event: %w", err))
	}
	return nil
}

// Subscribe registers h for topic and returns after the server has processed
// the subscription.
func (f *Feed) Subscribe(ctx context.Context, topic live.Topic, h live.Handler) (live.Subscription, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}

	log := f.client.logger.With(zap.String("subject", subject))
	sub, err := f.client.Conn().Subscribe(subject, func(m *nats.Msg) {
		var ev model.ChangeEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			log.Warn("dropping undecodable event", zap.Error(err))
			return
		}
		h(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	if err := flush(ctx, f.client.Conn()); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("subscription not acknowledged: %w", err)
	}
	return sub, nil
}

// Replay returns up to limit events of topic stored at or after since, oldest first.
func (f *Feed) Replay(ctx context.Context, topic live.Topic, since time.Time, limit int) ([]model.ChangeEvent, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := f.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverByStartTimePolicy,
		OptStartTime:   &since,
	})
	if err != nil {
		return nil, model.Backend("nats.replay", fmt.Errorf("failed to create consumer: %w", err))
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, model.Backend("nats.replay", fmt.Errorf("failed to fetch events: %w", err))
	}

	var events []model.ChangeEvent
	for msg := range batch.Messages() {
		var ev model.ChangeEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
		return nil, model.Backend("nats.replay", fmt.Errorf("batch error: %w", err))
	}
	return events, nil
}
