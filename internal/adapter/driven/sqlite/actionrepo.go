package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActionStore = (*ActionRepo)(nil)

const actionColumns = `id, type, credential_id, credential_requirement, metadata, community_id, hidden, created_at, updated_at`

// ActionRepo is the SQLite implementation of the ActionStore port interface.
type ActionRepo struct {
	db *DB
}

// NewActionRepo creates a new ActionRepo backed by the given DB.
func NewActionRepo(db *DB) *ActionRepo {
	return &ActionRepo{db: db}
}

// Upsert inserts the action or replaces every configurable field of an
// existing one. created_at is preserved across updates.
func (r *ActionRepo) Upsert(ctx context.Context, action model.Action) error {
	const query = `
		INSERT INTO actions (id, type, credential_id, credential_requirement, metadata, community_id, hidden, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			credential_id = excluded.credential_id,
			credential_requirement = excluded.credential_requirement,
			metadata = excluded.metadata,
			community_id = excluded.community_id,
			hidden = excluded.hidden,
			updated_at = excluded.updated_at
	`

	var requirement any
	if action.CredentialRequirement != nil {
		b, err := json.Marshal(action.CredentialRequirement)
		if err != nil {
			return fmt.Errorf("marshal credential requirement for action %s: %w", action.ID, err)
		}
		requirement = string(b)
	}

	metadata := string(action.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	hidden := 0
	if action.Hidden {
		hidden = 1
	}

	now := time.Now()
	_, err := r.db.Writer.ExecContext(ctx, query,
		action.ID, string(action.Type), nullableString(action.CredentialID), requirement,
		metadata, nullableString(action.CommunityID), hidden, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert action %s: %w", action.ID, err)
	}

	return nil
}

// Get returns the action with the given ID, or (nil, nil) if it does not exist.
func (r *ActionRepo) Get(ctx context.Context, id string) (*model.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = ?`

	action, err := scanAction(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action %s: %w", id, err)
	}

	return action, nil
}

// ListAll returns every action ordered by ID.
func (r *ActionRepo) ListAll(ctx context.Context) ([]model.Action, error) {
	return r.queryActions(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY id`)
}

// ListVisible returns non-hidden actions, scoped to communityID when it is non-empty.
func (r *ActionRepo) ListVisible(ctx context.Context, communityID string) ([]model.Action, error) {
	if communityID == "" {
		return r.queryActions(ctx, `SELECT `+actionColumns+` FROM actions WHERE hidden = 0 ORDER BY id`)
	}
	return r.queryActions(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE hidden = 0 AND community_id = ? ORDER BY id`,
		communityID,
	)
}

func (r *ActionRepo) queryActions(ctx context.Context, query string, args ...any) ([]model.Action, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, *action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	return actions, nil
}

func scanAction(s scanner) (*model.Action, error) {
	var (
		action                    model.Action
		actionType, metadata      string
		credentialID, requirement sql.NullString
		communityID               sql.NullString
		hidden                    int
		createdAt, updatedAt      string
	)

	err := s.Scan(
		&action.ID, &actionType, &credentialID, &requirement, &metadata,
		&communityID, &hidden, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	action.Type = model.ActionType(actionType)
	action.CredentialID = stringPtr(credentialID)
	action.CommunityID = stringPtr(communityID)
	action.Metadata = json.RawMessage(metadata)
	action.Hidden = hidden != 0

	if requirement.Valid && requirement.String != "" {
		var req model.CredentialRequirement
		if err := json.Unmarshal([]byte(requirement.String), &req); err != nil {
			return nil, fmt.Errorf("unmarshal credential requirement: %w", err)
		}
		action.CredentialRequirement = &req
	}

	if action.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if action.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &action, nil
}
