package driven

import (
	"context"
	"time"
)

// DedupStore is a shared keyed store with atomic check-and-set used to run each
// logical action request at most once within a time window.
type DedupStore interface {
	// Reserve atomically claims key for ttl. It returns false without error
	// when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Refresh resets the expiry of a held key. Keys are never released early:
	// an attempted request stays held until its window lapses.
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}
