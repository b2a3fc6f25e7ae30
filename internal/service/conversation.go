package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
	"github.com/sudwiptokm/TravelBuddy/pkg/tracing"
)

// Resolver finds or creates the two-party conversation between two users.
//
// Two callers resolving the same new pair at the same time can both create a
// conversation. Nothing here deduplicates afterwards; a uniqueness constraint
// on the unordered pair in the store would close the race.
type Resolver struct {
	conversations store.ConversationStore
	profiles      store.ProfileStore
	logger        *logger.Logger
}

// NewResolver creates a new conversation resolver.
func NewResolver(conversations store.ConversationStore, profiles store.ProfileStore, log *logger.Logger) *Resolver {
	return &Resolver{
		conversations: conversations,
		profiles:      profiles,
		logger:        log.Named("resolver"),
	}
}

// Resolve returns the id of the conversation between callerID and otherID,
// creating it on first contact.
func (s *Resolver) Resolve(ctx context.Context, callerID, otherID string) (string, error) {
	const op = "resolve conversation"

	ctx, span := tracing.Start(ctx, "service.Resolver.Resolve",
		attribute.String("caller_id", callerID),
		attribute.String("other_id", otherID),
	)
	defer span.End()

	if callerID == "" {
		return "", model.NotAuthenticated(op)
	}
	if otherID == "" {
		return "", model.Validation(op, "user id is required")
	}
	if otherID == callerID {
		return "", model.Validation(op, "cannot start a conversation with yourself")
	}

	if s.profiles != nil {
		if _, err := s.profiles.GetProfile(ctx, otherID); err != nil {
			span.RecordError(err)
			return "", model.Backend(op, err)
		}
	}

	mine, err := s.conversations.ConversationIDsForUser(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		return "", model.Backend(op, err)
	}

	if len(mine) > 0 {
		shared, err := s.conversations.FilterConversationsWithUser(ctx, mine, otherID)
		if err != nil {
			span.RecordError(err)
			return "", model.Backend(op, err)
		}
		if len(shared) > 0 {
			if len(shared) > 1 {
				s.logger.Warn("duplicate conversations for pair",
					zap.String("caller_id", callerID),
					zap.String("other_id", otherID),
					zap.Strings("conversation_ids", shared),
				)
			}
			return shared[0], nil
		}
	}

	conv, err := s.conversations.CreateConversation(ctx, model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return "", model.Backend(op, err)
	}

	if err := s.conversations.AddParticipants(ctx, conv.ID, callerID, otherID); err != nil {
		span.RecordError(err)
		// the conversation row stays behind without participants
		s.logger.Error("conversation created without participants",
			zap.String("conversation_id", conv.ID),
			zap.String("caller_id", callerID),
			zap.String("other_id", otherID),
			zap.Error(err),
		)
		return "", model.Backend(op, fmt.Errorf("add participants to %s: %w", conv.ID, err))
	}

	metrics.ConversationsCreatedTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("caller_id", callerID),
		zap.String("other_id", otherID),
	)
	return conv.ID, nil
}
