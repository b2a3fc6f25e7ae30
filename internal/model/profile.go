package model

import (
	"time"
)

// OnlineWindow is how recent a heartbeat must be for a profile to count as online.
const OnlineWindow = 5 * time.Minute

// Profile is a user's public directory entry.
type Profile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   *string   `json:"full_name,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	LastOnline time.Time `json:"last_online"`
}

// DisplayName returns the full name, falling back to the username.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "Unknown User"
	}
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	if p.Username != "" {
		return p.Username
	}
	return "Unknown User"
}

// IsOnline reports whether a heartbeat at lastOnline is recent enough at now.
func IsOnline(lastOnline, now time.Time) bool {
	return IsOnlineWithin(lastOnline, now, OnlineWindow)
}

// IsOnlineWithin is IsOnline with an explicit window.
func IsOnlineWithin(lastOnline, now time.Time, window time.Duration) bool {
	if lastOnline.IsZero() {
		return false
	}
	return now.Sub(lastOnline) < window
}

// UserEntry is a directory listing row.
type UserEntry struct {
	Profile
	Online bool `json:"online"`
}

// ListUsersResponse is the response for listing other users.
type ListUsersResponse struct {
	Users []UserEntry `json:"users"`
}
