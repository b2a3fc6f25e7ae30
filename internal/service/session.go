package service

import (
	"context"

	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// Session runs every messaging operation as the signed-in user reported by
// the identity provider.
type Session struct {
	identity identity.Provider
	store    store.Store
	feed     live.Feed
	logger   *logger.Logger

	Directory  *Directory
	Resolver   *Resolver
	Messages   *Messages
	ReadState  *ReadState
	Aggregator *Aggregator
}

// SessionConfig carries the collaborators of a Session.
type SessionConfig struct {
	Identity    identity.Provider
	Store       store.Store
	Feed        live.Feed
	Directory   *Directory
	Concurrency int
}

// NewSession wires the messaging services over one store and feed.
func NewSession(cfg SessionConfig, log *logger.Logger) *Session {
	dir := cfg.Directory
	if dir == nil {
		dir = NewDirectory(cfg.Store, cfg.Feed, nil, log)
	}
	return &Session{
		identity:   cfg.Identity,
		store:      cfg.Store,
		feed:       cfg.Feed,
		logger:     log,
		Directory:  dir,
		Resolver:   NewResolver(cfg.Store, cfg.Store, log),
		Messages:   NewMessages(cfg.Store, cfg.Feed, log),
		ReadState:  NewReadState(cfg.Store, log),
		Aggregator: NewAggregator(cfg.Store, log, cfg.Concurrency),
	}
}

// CurrentUser returns the signed-in user or a NotAuthenticated error.
func (s *Session) CurrentUser(ctx context.Context, op string) (string, error) {
	id, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return "", model.NotAuthenticated(op)
	}
	return id, nil
}

// Users lists every other profile with its online flag. It returns an empty
// list when nobody is signed in.
func (s *Session) Users(ctx context.Context) []model.UserEntry {
	userID, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return []model.UserEntry{}
	}
	return s.Directory.ListUsers(ctx, userID)
}

// TouchPresence records a heartbeat for the signed-in user.
func (s *Session) TouchPresence(ctx context.Context) {
	if userID, ok := s.identity.CurrentUser(ctx); ok {
		s.Directory.TouchPresence(ctx, userID)
	}
}

// Resolve returns the conversation with otherID, creating it on first contact.
func (s *Session) Resolve(ctx context.Context, otherID string) (string, error) {
	userID, err := s.CurrentUser(ctx, "resolve conversation")
	if err != nil {
		return "", err
	}
	return s.Resolver.Resolve(ctx, userID, otherID)
}

// Conversations records a heartbeat and lists the user's conversations.
func (s *Session) Conversations(ctx context.Context) ([]model.ConversationSummary, error) {
	userID, err := s.CurrentUser(ctx, "list conversations")
	if err != nil {
		return nil, err
	}
	s.Directory.TouchPresence(ctx, userID)
	return s.Aggregator.ListConversations(ctx, userID)
}

// History returns the messages of a conversation the user takes part in,
// each with its sender attached.
func (s *Session) History(ctx context.Context, conversationID string) ([]model.Message, error) {
	const op = "load history"
	if _, err := s.participant(ctx, op, conversationID); err != nil {
		return nil, err
	}
	return s.Messages.LoadHistoryWithSenders(ctx, conversationID)
}

// Send appends a message from the signed-in user.
func (s *Session) Send(ctx context.Context, conversationID, content string) (model.Message, error) {
	userID, err := s.CurrentUser(ctx, "append message")
	if err != nil {
		return model.Message{}, err
	}
	return s.Messages.Append(ctx, conversationID, userID, content)
}

// MarkRead marks the conversation read for the signed-in user.
func (s *Session) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	userID, err := s.participant(ctx, "mark read", conversationID)
	if err != nil {
		return 0, err
	}
	return s.ReadState.MarkRead(ctx, conversationID, userID)
}

// Unread counts the signed-in user's unread messages in the conversation.
func (s *Session) Unread(ctx context.Context, conversationID string) (int, error) {
	userID, err := s.participant(ctx, "unread count", conversationID)
	if err != nil {
		return 0, err
	}
	return s.ReadState.UnreadCount(ctx, conversationID, userID)
}

// Open attaches a live room to a conversation of the signed-in user. With
// autoRead the room marks messages read while it is open.
func (s *Session) Open(ctx context.Context, conversationID string, autoRead bool, opts ...live.RoomOption) (*live.Room, error) {
	userID, err := s.participant(ctx, "open conversation", conversationID)
	if err != nil {
		return nil, err
	}
	opts = append([]live.RoomOption{live.WithLogger(s.logger.Named("room"))}, opts...)
	if autoRead {
		opts = append(opts, live.WithAutoRead(s.ReadState))
	}
	return live.OpenRoom(ctx, s.feed, historyWithSenders{s.Messages}, conversationID, userID, opts...)
}

// WatchPresence attaches a presence watch to profileID.
func (s *Session) WatchPresence(ctx context.Context, profileID string, onChange func(model.Profile)) (*live.PresenceWatch, error) {
	if _, err := s.CurrentUser(ctx, "watch presence"); err != nil {
		return nil, err
	}
	p, err := s.Directory.Profile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	w := live.NewPresenceWatch(s.feed, p, s.Directory.Window(), onChange)
	if err := w.Attach(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Session) participant(ctx context.Context, op, conversationID string) (string, error) {
	userID, err := s.CurrentUser(ctx, op)
	if err != nil {
		return "", err
	}
	if conversationID == "" {
		return "", model.Validation(op, "conversation id is required")
	}
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return "", model.Backend(op, err)
	}
	if !ok {
		return "", model.NotFound(op, "conversation")
	}
	return userID, nil
}

type historyWithSenders struct {
	messages *Messages
}

func (h historyWithSenders) LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error) {
	return h.messages.LoadHistoryWithSenders(ctx, conversationID)
}
