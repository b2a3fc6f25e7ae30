package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
	"github.com/sudwiptokm/TravelBuddy/pkg/tracing"
)

// Messages loads history and appends messages. It keeps no cache: callers
// merge the message returned by Append into whatever they hold.
type Messages struct {
	store  store.Store
	feed   live.Feed
	logger *logger.Logger
}

var _ live.HistoryLoader = (*Messages)(nil)

// NewMessages creates a new message service. feed may be nil.
func NewMessages(st store.Store, feed live.Feed, log *logger.Logger) *Messages {
	return &Messages{
		store:  st,
		feed:   feed,
		logger: log.Named("messages"),
	}
}

// LoadHistory returns every message of the conversation ordered by
// created_at then id. The result is unbounded.
func (s *Messages) LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error) {
	const op = "load history"

	ctx, span := tracing.Start(ctx, "service.Messages.LoadHistory",
		attribute.String("conversation_id", conversationID),
	)
	defer span.End()

	if conversationID == "" {
		return nil, model.Validation(op, "conversation id is required")
	}
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, model.Backend(op, err)
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		return nil, model.Backend(op, err)
	}
	model.SortMessages(msgs)
	span.SetAttributes(attribute.Int("messages", len(msgs)))
	return msgs, nil
}

// LoadHistoryWithSenders is LoadHistory with each message's sender profile
// attached. Senders are looked up in one batch; if that fails the messages
// are returned without senders.
func (s *Messages) LoadHistoryWithSenders(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs, err := s.LoadHistory(ctx, conversationID)
	if err != nil || len(msgs) == 0 {
		return msgs, err
	}

	seen := make(map[string]struct{})
	var senderIDs []string
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := s.store.ProfilesByIDs(ctx, senderIDs)
	if err != nil {
		s.logger.Warn("failed to load message senders",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return msgs, nil
	}
	for i := range msgs {
		if p, ok := profiles[msgs[i].SenderID]; ok {
			msgs[i].Sender = &p
		}
	}
	return msgs, nil
}

// Append persists a message from senderID and publishes it to the feed.
// Content is trimmed and must not be empty.
func (s *Messages) Append(ctx context.Context, conversationID, senderID, content string) (model.Message, error) {
	const op = "append message"

	ctx, span := tracing.Start(ctx, "service.Messages.Append",
		attribute.String("conversation_id", conversationID),
		attribute.String("sender_id", senderID),
	)
	defer span.End()

	if senderID == "" {
		return model.Message{}, model.NotAuthenticated(op)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return model.Message{}, model.Validation(op, "message content is empty")
	}
	if conversationID == "" {
		return model.Message{}, model.Validation(op, "conversation id is required")
	}

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return model.Message{}, model.Backend(op, err)
	}
	ok, err := s.store.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		span.RecordError(err)
		return model.Message{}, model.Backend(op, err)
	}
	if !ok {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return model.Message{}, model.Validation(op, "sender is not a participant")
	}

	msg, err := s.store.InsertMessage(ctx, model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		metrics.MessagesTotal.WithLabelValues("error").Inc()
		return model.Message{}, model.Backend(op, err)
	}
	metrics.MessagesTotal.WithLabelValues("stored").Inc()

	s.logger.Debug("message appended",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID),
		zap.String("sender_id", senderID),
	)

	// the message is stored; a publish failure only delays other subscribers
	if s.feed != nil {
		if err := s.feed.Publish(ctx, model.NewMessageInserted(msg)); err != nil {
			s.logger.Warn("failed to publish message",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return msg, nil
}
