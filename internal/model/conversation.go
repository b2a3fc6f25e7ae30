// Package model defines data structures for the messaging core.
package model

import (
	"sort"
	"time"
)

// Conversation represents a two-party messaging thread.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant links a profile to a conversation.
type Participant struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// ConversationSummary is a derived view of a conversation for inbox display.
// It is never persisted.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Other        *Profile     `json:"other,omitempty"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}

// LastActivity returns the creation time of the last message, or the zero time.
func (s ConversationSummary) LastActivity() time.Time {
	if s.LastMessage == nil {
		return time.Time{}
	}
	return s.LastMessage.CreatedAt
}

// SortSummaries orders summaries most-recent-last-message first.
// Conversations without messages go last, ordered by conversation id.
func SortSummaries(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessage == nil && b.LastMessage == nil:
			return a.Conversation.ID < b.Conversation.ID
		case a.LastMessage == nil:
			return false
		case b.LastMessage == nil:
			return true
		}
		if !a.LastMessage.CreatedAt.Equal(b.LastMessage.CreatedAt) {
			return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
		}
		return a.LastMessage.ID > b.LastMessage.ID
	})
}

// ResolveConversationRequest is the request to find or create a conversation.
type ResolveConversationRequest struct {
	UserID string `json:"user_id"`
}

// ResolveConversationResponse carries the resolved conversation id.
type ResolveConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}
