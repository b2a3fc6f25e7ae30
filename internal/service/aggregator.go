package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
	"github.com/sudwiptokm/TravelBuddy/pkg/tracing"
)

// Aggregator builds the caller's conversation list. It is best effort: a
// conversation whose details cannot be fetched is logged and left out.
type Aggregator struct {
	store       store.Store
	logger      *logger.Logger
	concurrency int
}

// NewAggregator creates a new aggregator. concurrency bounds the
// per-conversation fallback fetches.
func NewAggregator(st store.Store, log *logger.Logger, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Aggregator{
		store:       st,
		logger:      log.Named("aggregator"),
		concurrency: concurrency,
	}
}

// ListConversations returns a summary per conversation of callerID, most
// recent activity first and conversations without messages last.
//
// Details are fetched in one batch per relation. If a batch fails, each
// conversation is fetched on its own so one bad row cannot hide the rest.
func (s *Aggregator) ListConversations(ctx context.Context, callerID string) ([]model.ConversationSummary, error) {
	if callerID == "" {
		return nil, model.NotAuthenticated("list conversations")
	}

	ctx, span := tracing.Start(ctx, "service.Aggregator.ListConversations",
		attribute.String("user_id", callerID),
	)
	defer span.End()

	log := s.logger.With(zap.String("user_id", callerID))

	ids, err := s.store.ConversationIDsForUser(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		log.Warn("failed to list conversations", zap.Error(err))
		return []model.ConversationSummary{}, nil
	}
	if len(ids) == 0 {
		return []model.ConversationSummary{}, nil
	}

	summaries, err := s.batch(ctx, ids, callerID, log)
	if err != nil {
		log.Warn("batch summary fetch failed, fetching per conversation", zap.Error(err))
		summaries = s.each(ctx, ids, callerID, log)
	}

	model.SortSummaries(summaries)
	span.SetAttributes(attribute.Int("conversations", len(summaries)))
	return summaries, nil
}

func (s *Aggregator) batch(ctx context.Context, ids []string, callerID string, log *logger.Logger) ([]model.ConversationSummary, error) {
	convs, err := s.store.ConversationsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	others, err := s.store.OtherParticipants(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(others))
	for _, id := range ids {
		if o := others[id]; len(o) > 0 {
			otherIDs = append(otherIDs, o[0])
		}
	}
	profiles, err := s.store.ProfilesByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadCounts(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		conv, ok := convs[id]
		if !ok {
			s.skip(log, id, model.NotFound("list conversations", "conversation"))
			continue
		}
		o := others[id]
		if len(o) == 0 {
			s.skip(log, id, errNoOtherParticipant)
			continue
		}
		p, ok := profiles[o[0]]
		if !ok {
			s.skip(log, id, model.NotFound("list conversations", "profile "+o[0]))
			continue
		}
		summary := model.ConversationSummary{
			Conversation: conv,
			Other:        &p,
			UnreadCount:  unread[id],
		}
		if m, ok := latest[id]; ok {
			summary.LastMessage = &m
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Aggregator) each(ctx context.Context, ids []string, callerID string, log *logger.Logger) []model.ConversationSummary {
	results := make([]*model.ConversationSummary, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			summary, err := s.one(ctx, id, callerID)
			if err != nil {
				s.skip(log, id, err)
				return nil
			}
			results[i] = summary
			return nil
		})
	}
	_ = g.Wait()

	summaries := make([]model.ConversationSummary, 0, len(ids))
	for _, r := range results {
		if r != nil {
			summaries = append(summaries, *r)
		}
	}
	return summaries
}

func (s *Aggregator) one(ctx context.Context, id, callerID string) (*model.ConversationSummary, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	others, err := s.store.OtherParticipants(ctx, []string{id}, callerID)
	if err != nil {
		return nil, err
	}
	if len(others[id]) == 0 {
		return nil, errNoOtherParticipant
	}
	p, err := s.store.GetProfile(ctx, others[id][0])
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMessages(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadCounts(ctx, []string{id}, callerID)
	if err != nil {
		return nil, err
	}

	summary := &model.ConversationSummary{
		Conversation: conv,
		Other:        &p,
		UnreadCount:  unread[id],
	}
	if m, ok := latest[id]; ok {
		summary.LastMessage = &m
	}
	return summary, nil
}

func (s *Aggregator) skip(log *logger.Logger, conversationID string, err error) {
	metrics.AggregateSkippedTotal.Inc()
	log.Warn("skipping conversation",
		zap.String("conversation_id", conversationID),
		zap.Error(err),
	)
}

var errNoOtherParticipant = model.NotFound("list conversations", "other participant")
