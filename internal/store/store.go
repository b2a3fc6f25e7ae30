// Package store defines the relational store contract the messaging core is
// built against. Adapters live in the memory, postgres and sqlite subpackages.
package store

import (
	"context"
	"time"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

// Store is the relational store over profiles, conversations, participants and
// messages. Implementations must be safe for concurrent use.
//
// Lookups of a single missing entity return an error matching model.ErrNotFound.
// Batch lookups omit missing keys instead of failing.
type Store interface {
	ProfileStore
	ConversationStore
	MessageStore

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// ProfileStore covers the profiles relation.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	// ProfilesByIDs returns the profiles that exist among ids, keyed by id.
	ProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error)
	// ListProfilesExcept returns every profile but excludeID, ordered by username.
	ListProfilesExcept(ctx context.Context, excludeID string) ([]model.Profile, error)
	// TouchProfile sets last_online and returns the updated profile.
	TouchProfile(ctx context.Context, id string, at time.Time) (model.Profile, error)
}

// ConversationStore covers the conversations and conversation_participants relations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error)
	GetConversation(ctx context.Context, id string) (model.Conversation, error)
	// ConversationsByIDs returns the conversations that exist among ids, keyed by id.
	ConversationsByIDs(ctx context.Context, ids []string) (map[string]model.Conversation, error)
	AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error
	// ConversationIDsForUser returns ids of conversations userID participates in,
	// oldest conversation first.
	ConversationIDsForUser(ctx context.Context, userID string) ([]string, error)
	// FilterConversationsWithUser returns the subset of conversationIDs in which
	// userID also participates, oldest conversation first.
	FilterConversationsWithUser(ctx context.Context, conversationIDs []string, userID string) ([]string, error)
	// OtherParticipants maps each conversation id to its participants other than userID.
	OtherParticipants(ctx context.Context, conversationIDs []string, userID string) (map[string][]string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageStore covers the messages relation.
type MessageStore interface {
	InsertMessage(ctx context.Context, m model.Message) (model.Message, error)
	// ListMessages returns every message of the conversation ordered by
	// created_at then id, ascending.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	// LatestMessages returns the newest message per conversation, keyed by
	// conversation id; conversations without messages are omitted.
	LatestMessages(ctx context.Context, conversationIDs []string) (map[string]model.Message, error)
	// MarkRead flips is_read for messages not sent by readerID and returns the
	// number of rows changed.
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	// UnreadCounts counts unread messages not sent by readerID per conversation.
	// Every requested id is present in the result.
	UnreadCounts(ctx context.Context, conversationIDs []string, readerID string) (map[string]int, error)
}
