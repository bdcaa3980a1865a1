package driven

import (
	"context"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// PostLinkStore defines the driven port for tracking posts copied across platforms.
type PostLinkStore interface {
	// Save records a link. Saving an existing (source, platform) pair replaces it.
	Save(ctx context.Context, link model.PostLink) error

	// Find returns the link for sourcePostID on platform, or (nil, nil) if none exists.
	Find(ctx context.Context, sourcePostID string, platform model.Platform) (*model.PostLink, error)

	// FindByTarget returns the link whose copy is targetPostID on platform, or (nil, nil).
	FindByTarget(ctx context.Context, targetPostID string, platform model.Platform) (*model.PostLink, error)

	// Delete removes the link for sourcePostID on platform. Missing links are not an error.
	Delete(ctx context.Context, sourcePostID string, platform model.Platform) error
}
