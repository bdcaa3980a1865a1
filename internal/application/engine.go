package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Engine defaults.
const (
	DefaultDedupTTL    = 5 * time.Minute
	DefaultConcurrency = 4
)

// fatalMarker in any action error escalates a batch to process shutdown.
const fatalMarker = "out of memory"

// EngineConfig tunes the action engine. Zero values select the defaults.
type EngineConfig struct {
	DedupTTL    time.Duration
	Concurrency int
}

// ActionEngine authorizes, deduplicates, executes, and logs action requests.
type ActionEngine struct {
	actions     driven.ActionStore
	credentials driven.CredentialStore
	executions  driven.ExecutionStore
	dedup       driven.DedupStore
	registry    *ActionRegistry
	logger      *slog.Logger
	dedupTTL    time.Duration
	concurrency int
	now         func() time.Time
}

// NewActionEngine creates an ActionEngine with the required dependencies.
func NewActionEngine(
	actions driven.ActionStore,
	credentials driven.CredentialStore,
	executions driven.ExecutionStore,
	dedup driven.DedupStore,
	registry *ActionRegistry,
	logger *slog.Logger,
	cfg EngineConfig,
) *ActionEngine {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &ActionEngine{
		actions:     actions,
		credentials: credentials,
		executions:  executions,
		dedup:       dedup,
		registry:    registry,
		logger:      logger,
		dedupTTL:    cfg.DedupTTL,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// Execute runs a single request. A request that already ran within the dedup
// window returns model.ErrAlreadyOccurred without invoking the handler.
func (e *ActionEngine) Execute(ctx context.Context, req model.ActionRequest) (*model.ActionResponse, error) {
	resp, _, err := e.run(ctx, req)
	return resp, err
}

// ExecuteBatch runs reqs concurrently, then runs the follow-up requests of the
// successful ones. Results are in request order with follow-up results
// appended. Per-request failures are reported in the results; the returned
// error is only set when the batch hit a fatal resource failure.
func (e *ActionEngine) ExecuteBatch(ctx context.Context, reqs []model.ActionRequest) ([]model.ActionResult, error) {
	results, handlers := e.runAll(ctx, reqs)

	var followUps []model.ActionRequest
	for _, h := range handlers {
		if h != nil {
			followUps = append(followUps, h.Next()...)
		}
	}

	if len(followUps) > 0 {
		more, _ := e.runAll(ctx, followUps)
		results = append(results, more...)
	}

	for _, r := range results {
		if strings.Contains(r.Error, fatalMarker) {
			e.logger.Error("fatal resource exhaustion during batch", "action_id", r.ActionID, "error", r.Error)
			return results, model.ErrFatalResourceExhaustion
		}
	}

	return results, nil
}

// runAll executes reqs with bounded concurrency. handlers[i] is non-nil only
// when reqs[i] ran and succeeded.
func (e *ActionEngine) runAll(ctx context.Context, reqs []model.ActionRequest) ([]model.ActionResult, []ActionHandler) {
	results := make([]model.ActionResult, len(reqs))
	handlers := make([]ActionHandler, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			resp, h, err := e.run(ctx, req)
			results[i] = toResult(req.ActionID, resp, err)
			if err == nil && resp != nil && resp.Success {
				handlers[i] = h
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, handlers
}

func toResult(actionID string, resp *model.ActionResponse, err error) model.ActionResult {
	switch {
	case errors.Is(err, model.ErrAlreadyOccurred):
		return model.ActionResult{ActionID: actionID, Success: true, AlreadyOccurred: true}
	case err != nil:
		return model.ActionResult{ActionID: actionID, Success: false, Error: err.Error(), Response: resp}
	default:
		return model.ActionResult{ActionID: actionID, Success: resp.Success, Response: resp}
	}
}

func (e *ActionEngine) run(ctx context.Context, req model.ActionRequest) (*model.ActionResponse, ActionHandler, error) {
	action, err := e.actions.Get(ctx, req.ActionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load action %s: %w", req.ActionID, err)
	}
	if action == nil {
		return nil, nil, fmt.Errorf("%s: %w", req.ActionID, model.ErrActionNotFound)
	}

	creds, err := e.resolveCredentials(ctx, *action, req.CredentialIDs)
	if err != nil {
		return nil, nil, err
	}

	handler, err := e.registry.Build(*action, req.Data, creds)
	if err != nil {
		return nil, nil, err
	}

	key, err := DedupKey(action.ID, req.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", model.ErrInvalidActionData, err)
	}

	// Once reserved, the key is held for the full window whatever the outcome.
	reserved, err := e.dedup.Reserve(ctx, key, e.dedupTTL)
	if err != nil {
		return nil, nil, err
	}
	if !reserved {
		return nil, nil, model.ErrAlreadyOccurred
	}

	resp, handleErr := invoke(ctx, handler)

	// The outcome is recorded even if the caller has gone away.
	bg := context.WithoutCancel(ctx)

	exec := model.ActionExecution{
		ID:         uuid.NewString(),
		ActionID:   action.ID,
		ActionData: req.Data,
		CreatedAt:  e.now(),
	}
	switch {
	case handleErr != nil:
		exec.Status = model.ExecutionStatusFailed
		exec.Error = handleErr.Error()
	case !resp.Success:
		exec.Status = model.ExecutionStatusFailed
		exec.Response = resp
	default:
		exec.Status = model.ExecutionStatusSuccess
		exec.Response = resp
	}

	// A lost audit row does not change what happened on the platform.
	if err := e.executions.Append(bg, exec); err != nil {
		e.logger.Error("failed to record action execution",
			"execution_id", exec.ID, "action_id", action.ID, "status", exec.Status, "error", err)
	}

	switch {
	case handleErr != nil:
		e.logger.Warn("action failed", "action_id", action.ID, "execution_id", exec.ID, "error", handleErr)
		return nil, nil, handleErr
	case !resp.Success:
		e.logger.Warn("action refused", "action_id", action.ID, "execution_id", exec.ID, "message", resp.Message)
		return resp, nil, nil
	}

	if err := e.dedup.Refresh(bg, key, e.dedupTTL); err != nil {
		e.logger.Warn("failed to refresh dedup key", "action_id", action.ID, "error", err)
	}

	attrs := []any{"action_id", action.ID, "execution_id", exec.ID, "post_id", resp.PostID}
	if creds.Selected != nil {
		attrs = append(attrs, "credential_id", creds.Selected.ID)
	}
	e.logger.Info("action executed", attrs...)
	return resp, handler, nil
}

// resolveCredentials loads the supplied credentials and, for gated actions,
// picks the one that satisfies the requirement.
func (e *ActionEngine) resolveCredentials(ctx context.Context, action model.Action, ids []string) (ResolvedCredentials, error) {
	var creds ResolvedCredentials
	if len(ids) > 0 {
		supplied, err := e.credentials.GetMany(ctx, ids)
		if err != nil {
			return creds, fmt.Errorf("load credentials: %w", err)
		}
		creds.Supplied = supplied
	}

	selected, err := AuthorizeCredential(creds.Supplied, action, e.now())
	if err != nil {
		return creds, err
	}
	creds.Selected = selected
	return creds, nil
}

// invoke calls h.Handle, converting errors and panics into ErrHandlerFailure.
func invoke(ctx context.Context, h ActionHandler) (resp *model.ActionResponse, err error) {
	defer func() {
		if v := recover(); v != nil {
			resp = nil
			err = fmt.Errorf("%w: panic: %v", model.ErrHandlerFailure, v)
		}
	}()

	resp, err = h.Handle(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrHandlerFailure, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: handler returned no response", model.ErrHandlerFailure)
	}
	return resp, nil
}
