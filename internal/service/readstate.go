package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
	"github.com/sudwiptokm/TravelBuddy/pkg/tracing"
)

// ReadState marks messages read and counts unread ones. Both operations use
// the same predicate: sender differs from the reader and is_read is false.
type ReadState struct {
	messages store.MessageStore
	logger   *logger.Logger
}

var _ live.ReadMarker = (*ReadState)(nil)

// NewReadState creates a new read-state tracker.
func NewReadState(messages store.MessageStore, log *logger.Logger) *ReadState {
	return &ReadState{
		messages: messages,
		logger:   log.Named("readstate"),
	}
}

// MarkRead flips every unread message not sent by readerID and returns how
// many changed. Calling it again with nothing new is a no-op.
func (s *ReadState) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	const op = "mark read"

	ctx, span := tracing.Start(ctx, "service.ReadState.MarkRead",
		attribute.String("conversation_id", conversationID),
		attribute.String("reader_id", readerID),
	)
	defer span.End()

	if readerID == "" {
		return 0, model.NotAuthenticated(op)
	}
	if conversationID == "" {
		return 0, model.Validation(op, "conversation id is required")
	}

	n, err := s.messages.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		span.RecordError(err)
		return 0, model.Backend(op, err)
	}
	if n > 0 {
		metrics.MessagesMarkedReadTotal.Add(float64(n))
	}
	return n, nil
}

// UnreadCount counts messages in the conversation readerID has not read.
func (s *ReadState) UnreadCount(ctx context.Context, conversationID, readerID string) (int, error) {
	const op = "unread count"

	if readerID == "" {
		return 0, model.NotAuthenticated(op)
	}
	if conversationID == "" {
		return 0, model.Validation(op, "conversation id is required")
	}

	counts, err := s.messages.UnreadCounts(ctx, []string{conversationID}, readerID)
	if err != nil {
		return 0, model.Backend(op, err)
	}
	return counts[conversationID], nil
}
