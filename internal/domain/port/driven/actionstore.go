package driven

import (
	"context"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// ActionStore defines the driven port for configured actions.
type ActionStore interface {
	// Upsert inserts or replaces an action by ID.
	Upsert(ctx context.Context, action model.Action) error

	// Get returns the action with the given ID, or (nil, nil) if none exists.
	Get(ctx context.Context, id string) (*model.Action, error)

	// ListAll returns every stored action ordered by ID.
	ListAll(ctx context.Context) ([]model.Action, error)

	// ListVisible returns non-hidden actions, optionally scoped to a community.
	// An empty communityID returns visible actions across all communities.
	ListVisible(ctx context.Context, communityID string) ([]model.Action, error)
}
