package driven

import (
	"context"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// CredentialStore defines the driven port for credential persistence.
// Credentials are content-addressed, so Insert is idempotent on ID.
type CredentialStore interface {
	// Insert stores cred unless a credential with the same ID already exists,
	// and returns the stored row either way.
	Insert(ctx context.Context, cred model.Credential) (*model.Credential, error)

	// InsertReverification stores child and marks parentID as reverified by it
	// in a single transaction. Returns model.ErrAlreadyReverified if the parent
	// already has a successor; nothing is written in that case.
	InsertReverification(ctx context.Context, child model.Credential, parentID string) (*model.Credential, error)

	// Get returns the credential with the given ID, or (nil, nil) if none exists.
	// The proof is never loaded.
	Get(ctx context.Context, id string) (*model.Credential, error)

	// GetMany returns the credentials among ids that exist, in no particular order.
	GetMany(ctx context.Context, ids []string) ([]model.Credential, error)

	// SetVault assigns or clears (vaultID nil) the vault owning a credential.
	// Returns model.ErrCredentialNotFound if the credential does not exist.
	SetVault(ctx context.Context, id string, vaultID *string) error

	// ListByVault returns all non-deleted credentials owned by vaultID.
	ListByVault(ctx context.Context, vaultID string) ([]model.Credential, error)
}
