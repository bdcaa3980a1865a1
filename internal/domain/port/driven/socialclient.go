package driven

import (
	"context"
	"errors"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// Errors a SocialPlatformClient returns for refusals that are not handler failures.
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrPostNotFound = errors.New("post not found")
)

// SocialPlatformClient defines the driven port for posting to one social platform
// on behalf of a configured account.
type SocialPlatformClient interface {
	Platform() model.Platform
	CreatePost(ctx context.Context, accountID string, content model.PostContent) (string, error)
	DeletePost(ctx context.Context, accountID, postID string) error
	// GetPost returns ErrPostNotFound when the post does not exist.
	GetPost(ctx context.Context, postID string) (*model.Post, error)
}
