package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ExecutionStore = (*ExecutionRepo)(nil)

// ExecutionRepo is the SQLite implementation of the ExecutionStore port interface.
// The table is append-only; nothing here updates or deletes rows.
type ExecutionRepo struct {
	db *DB
}

// NewExecutionRepo creates a new ExecutionRepo backed by the given DB.
func NewExecutionRepo(db *DB) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

// Append inserts one execution row.
func (r *ExecutionRepo) Append(ctx context.Context, exec model.ActionExecution) error {
	const query = `
		INSERT INTO action_executions (id, action_id, action_data, status, response, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var response any
	if exec.Response != nil {
		b, err := json.Marshal(exec.Response)
		if err != nil {
			return fmt.Errorf("marshal response for execution %s: %w", exec.ID, err)
		}
		response = string(b)
	}

	var execErr any
	if exec.Error != "" {
		execErr = exec.Error
	}

	data := string(exec.ActionData)
	if data == "" {
		data = "null"
	}

	createdAt := exec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		exec.ID, exec.ActionID, data, string(exec.Status), response, execErr, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("append execution %s for action %s: %w", exec.ID, exec.ActionID, err)
	}

	return nil
}

// ListByAction returns the executions of actionID, newest first.
func (r *ExecutionRepo) ListByAction(ctx context.Context, actionID string) ([]model.ActionExecution, error) {
	const query = `
		SELECT id, action_id, action_data, status, response, error, created_at
		FROM action_executions
		WHERE action_id = ?
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, actionID)
	if err != nil {
		return nil, fmt.Errorf("list executions for action %s: %w", actionID, err)
	}
	defer rows.Close()

	var execs []model.ActionExecution
	for rows.Next() {
		var (
			exec            model.ActionExecution
			data, status    string
			response, eText sql.NullString
			createdAt       string
		)
		if err := rows.Scan(&exec.ID, &exec.ActionID, &data, &status, &response, &eText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}

		exec.ActionData = json.RawMessage(data)
		exec.Status = model.ExecutionStatus(status)
		exec.Error = eText.String

		if response.Valid {
			var resp model.ActionResponse
			if err := json.Unmarshal([]byte(response.String), &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response for execution %s: %w", exec.ID, err)
			}
			exec.Response = &resp
		}

		exec.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for execution %s: %w", exec.ID, err)
		}

		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}

	return execs, nil
}
