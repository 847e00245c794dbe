package cache

import (
	"encoding/json"
	"time"
)

// Entry is one stored backend response.
type Entry struct {
	Key string `json:"key"`

	// Request is "METHOD path", kept so the directory can be inspected by hand.
	Request string `json:"request,omitempty"`

	Body      json.RawMessage `json:"body"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ExpiredAt reports whether the entry is stale at now.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Remaining is the lifetime left at now, never negative.
func (e *Entry) Remaining(now time.Time) time.Duration {
	return max(e.ExpiresAt.Sub(now), 0)
}
