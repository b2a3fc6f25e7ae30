package model

import (
	"sort"
	"time"
)

// Message represents a message in a conversation.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`

	// Content
	Content string `json:"content"`

	// State
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`

	// Sender is populated on history reads when requested.
	Sender *Profile `json:"sender,omitempty"`
}

// Before reports whether m sorts before other in conversation order:
// created_at ascending, ties broken by id ascending.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// SortMessages sorts messages in conversation order.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	})
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// MarkReadResponse reports how many messages were flipped to read.
type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}

// UnreadCountResponse carries an unread count.
type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	Unread         int    `json:"unread"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotEvent is the first event on a live stream: the merged history.
type SnapshotEvent struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}
