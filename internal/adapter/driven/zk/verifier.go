// Package zk verifies groth16 balance proofs over BN254 with gnark.
package zk

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// curve is the pairing curve every verifying key is generated on.
const curve = ecc.BN254

// Compile-time interface satisfaction check.
var _ driven.ProofVerifier = (*Verifier)(nil)

// Verifier checks proofs against one server-held verifying key.
type Verifier struct {
	vk groth16.VerifyingKey
}

// NewVerifier decodes a serialized BN254 verifying key.
func NewVerifier(vkBytes []byte) (*Verifier, error) {
	vk := groth16.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return &Verifier{vk: vk}, nil
}

// Verify reports whether proof is valid for publicInputs. Undecodable proofs
// and inputs that do not fit the key return an error wrapping
// model.ErrInvalidProof; a well-formed proof that fails the pairing check
// returns (false, nil).
func (v *Verifier) Verify(_ context.Context, proof []byte, publicInputs []string) (bool, error) {
	p := groth16.NewProof(curve)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("%w: decode proof: %w", model.ErrInvalidProof, err)
	}

	w, err := v.publicWitness(publicInputs)
	if err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrInvalidProof, err)
	}

	if err := groth16.Verify(p, v.vk, w); err != nil {
		return false, nil
	}
	return true, nil
}

// Parse extracts credential metadata from publicInputs.
func (v *Verifier) Parse(publicInputs []string) (model.CredentialMetadata, error) {
	return ParsePublicInputs(publicInputs)
}

func (v *Verifier) publicWitness(publicInputs []string) (witness.Witness, error) {
	nbPublic := v.vk.NbPublicWitness()
	if len(publicInputs) != nbPublic {
		return nil, fmt.Errorf("expected %d public inputs, got %d", nbPublic, len(publicInputs))
	}

	fields, err := parseFields(publicInputs)
	if err != nil {
		return nil, err
	}

	modulus := curve.ScalarField()
	for i, f := range fields {
		if f.Cmp(modulus) >= 0 {
			return nil, fmt.Errorf("public input %d exceeds scalar field", i)
		}
	}

	w, err := witness.New(modulus)
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}

	values := make(chan any, len(fields))
	for _, f := range fields {
		values <- new(big.Int).Set(f)
	}
	close(values)

	if err := w.Fill(nbPublic, 0, values); err != nil {
		return nil, fmt.Errorf("fill witness: %w", err)
	}
	return w, nil
}
