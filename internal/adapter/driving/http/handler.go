package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/makerdock/anonzora/internal/application"
	"github.com/makerdock/anonzora/internal/domain/model"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 32
)

// CredentialService verifies credentials and manages their vault ownership.
type CredentialService interface {
	Verify(ctx context.Context, req application.VerifyRequest) (*model.Credential, error)
	Get(ctx context.Context, id string) (*model.Credential, error)
	AttachVault(ctx context.Context, id, vaultID string) (*model.Credential, error)
	DetachVault(ctx context.Context, id, vaultID string) error
	ListVaultCredentials(ctx context.Context, vaultID string) ([]model.Credential, error)
}

// ActionCatalog lists the actions clients may run.
type ActionCatalog interface {
	ListVisible(ctx context.Context, communityID string) ([]model.Action, error)
}

// ActionExecutor runs batches of action requests.
type ActionExecutor interface {
	ExecuteBatch(ctx context.Context, reqs []model.ActionRequest) ([]model.ActionResult, error)
}

// HealthChecker reports the health of the service's dependencies.
type HealthChecker interface {
	Check(ctx context.Context) application.HealthReport
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	credentials   CredentialService
	actions       ActionCatalog
	executor      ActionExecutor
	health        HealthChecker
	sessionSecret []byte
	onFatal       func(error)
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. onFatal is
// called when a batch reports resource exhaustion; it may be nil.
func NewHandler(
	credentials CredentialService,
	actions ActionCatalog,
	executor ActionExecutor,
	health HealthChecker,
	sessionSecret []byte,
	onFatal func(error),
	logger *slog.Logger,
) *Handler {
	return &Handler{
		credentials:   credentials,
		actions:       actions,
		executor:      executor,
		health:        health,
		sessionSecret: sessionSecret,
		onFatal:       onFatal,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/credentials", h.VerifyCredential)
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.GetCredential)
	mux.HandleFunc("PUT /api/v1/credentials/{id}/vault", h.requireVault(h.AttachVault))
	mux.HandleFunc("DELETE /api/v1/credentials/{id}/vault", h.requireVault(h.DetachVault))
	mux.HandleFunc("GET /api/v1/vault/credentials", h.requireVault(h.ListVaultCredentials))
	mux.HandleFunc("GET /api/v1/actions", h.ListActions)
	mux.HandleFunc("POST /api/v1/actions/execute", h.ExecuteActions)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// VerifyCredential verifies a balance proof and returns the resulting credential.
func (h *Handler) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	var req VerifyCredentialRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	credType := model.CredentialType(req.Type)
	if !credType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown credential type")
		return
	}
	if req.Version == "" {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	if len(req.PublicInputs) == 0 {
		writeError(w, http.StatusBadRequest, "publicInputs is required")
		return
	}

	if len(req.Proof) == 0 {
		writeError(w, http.StatusBadRequest, "proof is required")
		return
	}

	cred, err := h.credentials.Verify(r.Context(), application.VerifyRequest{
		Type:         credType,
		Version:      req.Version,
		Proof:        req.Proof,
		PublicInputs: req.PublicInputs,
		ParentID:     req.ParentID,
	})
	if err != nil {
		h.writeCredentialError(w, "failed to verify credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// GetCredential returns a single credential by id.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentials.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeCredentialError(w, "failed to get credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// AttachVault assigns a credential to the session's vault.
func (h *Handler) AttachVault(w http.ResponseWriter, r *http.Request) {
	cred, err := h.credentials.AttachVault(r.Context(), r.PathValue("id"), vaultFromContext(r.Context()))
	if err != nil {
		h.writeCredentialError(w, "failed to attach credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// DetachVault removes a credential from the session's vault.
func (h *Handler) DetachVault(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials.DetachVault(r.Context(), r.PathValue("id"), vaultFromContext(r.Context())); err != nil {
		h.writeCredentialError(w, "failed to detach credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListVaultCredentials returns the usable credentials in the session's vault.
func (h *Handler) ListVaultCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.ListVaultCredentials(r.Context(), vaultFromContext(r.Context()))
	if err != nil {
		h.logger.Error("failed to list vault credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, toCredentialResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListActions returns the visible actions, optionally for one community.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.actions.ListVisible(r.Context(), r.URL.Query().Get("communityId"))
	if err != nil {
		h.logger.Error("failed to list actions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ActionResponse, 0, len(actions))
	for _, a := range actions {
		resp = append(resp, toActionResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExecuteActions runs a batch of action requests. Per-request failures are
// reported in the results with a 200; only resource exhaustion fails the call.
func (h *Handler) ExecuteActions(w http.ResponseWriter, r *http.Request) {
	var req ExecuteActionsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if len(req.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "actions is required")
		return
	}
	if len(req.Actions) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many actions in one request")
		return
	}
	for _, a := range req.Actions {
		if a.ActionID == "" {
			writeError(w, http.StatusBadRequest, "actionId is required")
			return
		}
	}

	results, err := h.executor.ExecuteBatch(r.Context(), req.Actions)
	if err != nil {
		h.logger.Error("action batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		if errors.Is(err, model.ErrFatalResourceExhaustion) && h.onFatal != nil {
			h.onFatal(err)
		}
		return
	}

	writeJSON(w, http.StatusOK, ExecuteActionsResponse{Results: results})
}

// Health reports dependency health. It answers 503 when a critical
// dependency is down so orchestrators can restart the container.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == application.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, toHealthResponse(report, time.Now()))
}

// decodeBody decodes a size-limited JSON body into v, writing a 400 on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeCredentialError maps credential sentinels to status codes.
func (h *Handler) writeCredentialError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidProof),
		errors.Is(err, model.ErrInvalidStorageProof),
		errors.Is(err, model.ErrUnknownVerifier),
		errors.Is(err, model.ErrUnsupportedChain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrParentNotFound):
		writeError(w, http.StatusNotFound, "parent credential not found")
	case errors.Is(err, model.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, model.ErrAlreadyReverified):
		writeError(w, http.StatusConflict, "credential already reverified")
	case errors.Is(err, model.ErrVaultMismatch):
		writeError(w, http.StatusForbidden, "credential belongs to another vault")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
