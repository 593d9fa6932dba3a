package state

import "errors"

var (
	// ErrNotFound is returned by Load when no document has been saved under the key.
	ErrNotFound = errors.New("state key not found")

	// ErrInvalidKey is returned when a key contains characters outside [a-z0-9_-].
	ErrInvalidKey = errors.New("state key must match [a-z0-9_-]+")
)

// Store persists named documents across restarts. Subscription tables,
// counters, and feed cursors depend only on this interface.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load unmarshals the document saved under key into v.
	// Returns ErrNotFound if the key has never been saved.
	Load(key string, v any) error

	// Save marshals v and stores it under key, replacing any earlier document.
	// A failed save must leave the earlier document intact.
	Save(key string, v any) error
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
