package model

import "errors"

// Verification errors.
var (
	ErrInvalidProof        = errors.New("invalid proof")
	ErrInvalidStorageProof = errors.New("invalid storage proof")
	ErrParentNotFound      = errors.New("parent credential not found")
	ErrAlreadyReverified   = errors.New("credential already reverified")
	ErrUnknownVerifier     = errors.New("unknown verifier")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrVaultMismatch       = errors.New("credential belongs to another vault")
)

// Execution errors.
var (
	ErrActionNotFound      = errors.New("action not found")
	ErrUnknownActionType   = errors.New("unknown action type")
	ErrInvalidActionConfig = errors.New("invalid action config")
	ErrInvalidActionData   = errors.New("invalid action data")
	ErrMissingCredential   = errors.New("missing credential")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAlreadyOccurred is soft: the same request ran within the dedup window.
	ErrAlreadyOccurred = errors.New("action already occurred")
	ErrHandlerFailure  = errors.New("handler failure")
	// ErrFatalResourceExhaustion escalates a batch failure to process shutdown.
	ErrFatalResourceExhaustion = errors.New("fatal resource exhaustion")
)
