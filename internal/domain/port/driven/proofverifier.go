package driven

import (
	"context"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// ProofVerifier checks a zero-knowledge balance proof against its public inputs.
// One verifier exists per (credential type, version).
type ProofVerifier interface {
	// Verify reports whether proof is valid for publicInputs. A malformed proof
	// returns an error wrapping model.ErrInvalidProof.
	Verify(ctx context.Context, proof []byte, publicInputs []string) (bool, error)

	// Parse extracts credential metadata from public inputs. It performs no
	// cryptography.
	Parse(publicInputs []string) (model.CredentialMetadata, error)
}

// VerifierRegistry resolves the verifier for a credential type and version.
type VerifierRegistry interface {
	// Verifier returns model.ErrUnknownVerifier when no key is loaded for the pair.
	Verifier(credType model.CredentialType, version string) (ProofVerifier, error)
}
