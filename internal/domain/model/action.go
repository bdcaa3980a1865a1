package model

import (
	"encoding/json"
	"math/big"
	"time"
)

// Action is a configured, optionally credential-gated operation.
type Action struct {
	ID   string
	Type ActionType
	// CredentialID is a credential class, not a credential instance id.
	// Nil when the action needs no credential.
	CredentialID          *string
	CredentialRequirement *CredentialRequirement
	Metadata              json.RawMessage
	CommunityID           *string
	Hidden                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CredentialRequirement is the static requirement an action places on the
// credential that satisfies it.
type CredentialRequirement struct {
	MinimumBalance string `json:"minimumBalance"`
}

// MinimumBalanceInt returns the required balance, zero when unset or unparseable.
func (a Action) MinimumBalanceInt() *big.Int {
	if a.CredentialRequirement == nil {
		return new(big.Int)
	}
	n, ok := new(big.Int).SetString(a.CredentialRequirement.MinimumBalance, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// RequiresCredential reports whether the action is credential-gated.
func (a Action) RequiresCredential() bool {
	return a.CredentialID != nil && *a.CredentialID != ""
}

// ActionRequest asks the engine to run one action with caller data, using the
// listed credential ids as proof of eligibility.
type ActionRequest struct {
	ActionID      string          `json:"actionId"`
	Data          json.RawMessage `json:"data"`
	CredentialIDs []string        `json:"credentials"`
}

// ActionResponse is what a handler returns. Success is false when the
// platform refused the operation (rate limit, missing post) without the
// handler itself failing.
type ActionResponse struct {
	Success  bool     `json:"success"`
	Platform Platform `json:"platform,omitempty"`
	PostID   string   `json:"postId,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// ActionResult is the per-request outcome reported to the caller of a batch.
type ActionResult struct {
	ActionID        string          `json:"actionId"`
	Success         bool            `json:"success"`
	AlreadyOccurred bool            `json:"alreadyOccurred,omitempty"`
	Error           string          `json:"error,omitempty"`
	Response        *ActionResponse `json:"response,omitempty"`
}

// ActionExecution is one append-only audit row per execution attempt.
type ActionExecution struct {
	ID         string
	ActionID   string
	ActionData json.RawMessage
	Status     ExecutionStatus
	Response   *ActionResponse
	Error      string
	CreatedAt  time.Time
}
