// Package domain contains core domain types for the vcsearch bot.
package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the addressed record does not exist.
var ErrNotFound = errors.New("record not found")

// AuthRecord is the authentication half of a user's persisted session row.
// It is written only by an explicit authentication change, never as a side
// effect of a conversation state update.
type AuthRecord struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	Username        string    `json:"username,omitempty"`
	FirstName       string    `json:"first_name,omitempty"`
}

// DisplayName returns a human-readable name for log lines and greetings.
func (a AuthRecord) DisplayName() string {
	switch {
	case a.FirstName != "":
		return a.FirstName
	case a.Username != "":
		return "@" + a.Username
	default:
		return ""
	}
}
