package model

import (
	"time"
)

// EventType represents the type of change event carried by the push channel.
type EventType string

const (
	EventTypeMessageInserted EventType = "message.inserted"
	EventTypeProfileUpdated  EventType = "profile.updated"
)

// ChangeEvent is a row change pushed to subscribers.
// Exactly one of Message or Profile is set, matching Type.
type ChangeEvent struct {
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageInserted builds an inserted-message event.
func NewMessageInserted(msg Message) ChangeEvent {
	return ChangeEvent{
		Type:      EventTypeMessageInserted,
		Message:   &msg,
		CreatedAt: time.Now().UTC(),
	}
}

// NewProfileUpdated builds a profile-updated event.
func NewProfileUpdated(p Profile) ChangeEvent {
	return ChangeEvent{
		Type:      EventTypeProfileUpdated,
		Profile:   &p,
		CreatedAt: time.Now().UTC(),
	}
}

// Key returns the topic key of the event: the conversation id for messages,
// the profile id for profile updates.
func (e ChangeEvent) Key() string {
	switch e.Type {
	case EventTypeMessageInserted:
		if e.Message != nil {
			return e.Message.ConversationID
		}
	case EventTypeProfileUpdated:
		if e.Profile != nil {
			return e.Profile.ID
		}
	}
	return ""
}
