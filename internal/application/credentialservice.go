package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// VerifyRequest is a proof submitted in exchange for a credential.
type VerifyRequest struct {
	Type         model.CredentialType
	Version      string
	Proof        []byte
	PublicInputs []string
	ParentID     *string // Set to reverify an existing credential.
}

// CredentialService turns balance proofs into content-addressed credentials
// and manages their vault ownership.
type CredentialService struct {
	verifiers driven.VerifierRegistry
	oracle    *StorageOracle
	store     driven.CredentialStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewCredentialService creates a CredentialService with the required dependencies.
func NewCredentialService(
	verifiers driven.VerifierRegistry,
	oracle *StorageOracle,
	store driven.CredentialStore,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		verifiers: verifiers,
		oracle:    oracle,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify checks req and returns the resulting credential. Re-submitting a proof
// that was already verified returns the stored credential without touching the
// chain. The proof is stripped from the returned credential.
func (s *CredentialService) Verify(ctx context.Context, req VerifyRequest) (*model.Credential, error) {
	verifier, err := s.verifiers.Verifier(req.Type, req.Version)
	if err != nil {
		return nil, err
	}

	ok, err := verifier.Verify(ctx, req.Proof, req.PublicInputs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrInvalidProof
	}

	md, err := verifier.Parse(req.PublicInputs)
	if err != nil {
		return nil, err
	}

	id := crypto.Keccak256Hash(req.Proof).Hex()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return stripped(existing), nil
	}

	verifiedAt, err := s.oracle.Check(ctx, md)
	if err != nil {
		return nil, err
	}

	cred := model.Credential{
		ID:         id,
		Class:      model.CredentialClass(req.Type, md.ChainID, md.TokenAddress),
		Type:       req.Type,
		Version:    req.Version,
		Metadata:   md,
		Proof:      &model.CredentialProof{Bytes: req.Proof, PublicInputs: req.PublicInputs},
		VerifiedAt: verifiedAt,
		CreatedAt:  s.now(),
	}

	if req.ParentID == nil {
		stored, err := s.store.Insert(ctx, cred)
		if err != nil {
			return nil, err
		}
		s.logger.Info("credential verified", "id", stored.ID, "class", stored.Class, "block", md.BlockNumber)
		return stripped(stored), nil
	}

	parent, err := s.store.Get(ctx, *req.ParentID)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.DeletedAt != nil {
		return nil, fmt.Errorf("%s: %w", *req.ParentID, model.ErrParentNotFound)
	}
	if parent.ReverifiedID != nil {
		return nil, fmt.Errorf("%s: %w", parent.ID, model.ErrAlreadyReverified)
	}

	root := parent.LineageRoot()
	cred.ParentID = &root
	cred.VaultID = parent.VaultID

	stored, err := s.store.InsertReverification(ctx, cred, parent.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("credential reverified", "id", stored.ID, "parent", parent.ID, "lineage", root)
	return stripped(stored), nil
}

// Get returns the credential with the given id, without its proof.
func (s *CredentialService) Get(ctx context.Context, id string) (*model.Credential, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%s: %w", id, model.ErrCredentialNotFound)
	}
	return stripped(cred), nil
}

// AttachVault assigns credential id to vaultID. A credential already held by
// another vault cannot be taken over.
func (s *CredentialService) AttachVault(ctx context.Context, id, vaultID string) (*model.Credential, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred.VaultID != nil && *cred.VaultID != vaultID {
		return nil, model.ErrVaultMismatch
	}

	if err := s.store.SetVault(ctx, id, &vaultID); err != nil {
		return nil, err
	}
	cred.VaultID = &vaultID
	return cred, nil
}

// DetachVault removes credential id from vaultID. Only the owning vault may detach.
func (s *CredentialService) DetachVault(ctx context.Context, id, vaultID string) error {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if cred.VaultID == nil || *cred.VaultID != vaultID {
		return model.ErrVaultMismatch
	}

	return s.store.SetVault(ctx, id, nil)
}

// ListVaultCredentials returns the vault's credentials that can still satisfy actions.
func (s *CredentialService) ListVaultCredentials(ctx context.Context, vaultID string) ([]model.Credential, error) {
	creds, err := s.store.ListByVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	current := make([]model.Credential, 0, len(creds))
	for _, c := range creds {
		if c.IsCurrent(now) {
			current = append(current, c.WithoutProof())
		}
	}
	return current, nil
}

func stripped(c *model.Credential) *model.Credential {
	out := c.WithoutProof()
	return &out
}
