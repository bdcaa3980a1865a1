package driven

import (
	"context"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// ExecutionStore defines the driven port for the append-only action execution log.
type ExecutionStore interface {
	// Append records one execution attempt. Rows are never updated.
	Append(ctx context.Context, exec model.ActionExecution) error

	// ListByAction returns the execution log for an action, newest first.
	ListByAction(ctx context.Context, actionID string) ([]model.ActionExecution, error)
}
