package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PostLinkStore = (*PostLinkRepo)(nil)

const postLinkColumns = `id, source_post_id, target_platform, target_account_id, target_post_id, created_at`

// PostLinkRepo is the SQLite implementation of the PostLinkStore port interface.
type PostLinkRepo struct {
	db *DB
}

// NewPostLinkRepo creates a new PostLinkRepo backed by the given DB.
func NewPostLinkRepo(db *DB) *PostLinkRepo {
	return &PostLinkRepo{db: db}
}

// Save records that link.SourcePostID was copied to link.TargetPlatform.
func (r *PostLinkRepo) Save(ctx context.Context, link model.PostLink) error {
	const query = `
		INSERT INTO post_links (source_post_id, target_platform, target_account_id, target_post_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_post_id, target_platform) DO UPDATE SET
			target_account_id = excluded.target_account_id,
			target_post_id = excluded.target_post_id,
			created_at = excluded.created_at
	`

	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		link.SourcePostID, string(link.TargetPlatform), link.TargetAccountID, link.TargetPostID, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("save post link %s -> %s: %w", link.SourcePostID, link.TargetPlatform, err)
	}

	return nil
}

// Find returns the copy of sourcePostID on platform, or (nil, nil).
func (r *PostLinkRepo) Find(ctx context.Context, sourcePostID string, platform model.Platform) (*model.PostLink, error) {
	query := `SELECT ` + postLinkColumns + ` FROM post_links WHERE source_post_id = ? AND target_platform = ?`
	return r.findOne(ctx, query, sourcePostID, string(platform))
}

// FindByTarget returns the link whose copy on platform is targetPostID, or (nil, nil).
func (r *PostLinkRepo) FindByTarget(ctx context.Context, targetPostID string, platform model.Platform) (*model.PostLink, error) {
	query := `SELECT ` + postLinkColumns + ` FROM post_links WHERE target_post_id = ? AND target_platform = ?`
	return r.findOne(ctx, query, targetPostID, string(platform))
}

// Delete removes the link for sourcePostID on platform.
func (r *PostLinkRepo) Delete(ctx context.Context, sourcePostID string, platform model.Platform) error {
	const query = `DELETE FROM post_links WHERE source_post_id = ? AND target_platform = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, sourcePostID, string(platform)); err != nil {
		return fmt.Errorf("delete post link %s -> %s: %w", sourcePostID, platform, err)
	}

	return nil
}

func (r *PostLinkRepo) findOne(ctx context.Context, query string, args ...any) (*model.PostLink, error) {
	var (
		link      model.PostLink
		platform  string
		createdAt string
	)

	err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(
		&link.ID, &link.SourcePostID, &platform, &link.TargetAccountID, &link.TargetPostID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post link: %w", err)
	}

	link.TargetPlatform = model.Platform(platform)
	link.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &link, nil
}
