// Package dedupe detects webhook redeliveries by their delivery ID, so a
// retried request is acknowledged without being counted or delivered twice.
package dedupe

import "context"

// Deduper reports whether a delivery ID has been seen before, recording it
// as a side effect. Implementations must be safe for concurrent use.
type Deduper interface {
	// Seen records deliveryID and reports whether it was already recorded.
	Seen(ctx context.Context, deliveryID string) (bool, error)
}

// None disables deduplication: every delivery is new.
type None struct{}

// Seen always reports false.
func (None) Seen(context.Context, string) (bool, error) { return false, nil }
