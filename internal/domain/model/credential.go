package model

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// CredentialTTL is how long a credential stays usable after the block it was
// proven against.
const CredentialTTL = 7 * 24 * time.Hour

// Credential is a verified, content-addressed token balance fact. ID is the
// keccak256 of the raw proof bytes, so verifying the same proof twice always
// yields the same credential.
type Credential struct {
	ID           string
	Class        string // "{type}:{chainId}:{tokenAddress}"
	Type         CredentialType
	Version      string
	Metadata     CredentialMetadata
	Proof        *CredentialProof // Nil on every credential returned to callers.
	VerifiedAt   time.Time        // Timestamp of Metadata.BlockNumber, not wall clock.
	ParentID     *string          // Lineage root this credential reverifies.
	ReverifiedID *string          // Successor; set once, never cleared.
	VaultID      *string
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// CredentialMetadata holds the public facts parsed from a proof's public inputs.
type CredentialMetadata struct {
	ChainID      uint64 `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	Balance      string `json:"balance"` // Decimal big integer.
	BlockNumber  uint64 `json:"blockNumber"`
	BalanceSlot  string `json:"balanceSlot"` // Decimal big integer.
	StorageHash  string `json:"storageHash"` // 0x-prefixed 32-byte hex.
}

// CredentialProof is the raw proof retained for audit. It is written once and
// never needed again after verification.
type CredentialProof struct {
	Bytes        []byte   `json:"proof"`
	PublicInputs []string `json:"publicInputs"`
}

// CredentialClass identifies what a credential proves, independent of who holds it.
func CredentialClass(t CredentialType, chainID uint64, tokenAddress string) string {
	return fmt.Sprintf("%s:%d:%s", t, chainID, strings.ToLower(tokenAddress))
}

// BalanceInt returns the metadata balance as a big integer. Unparseable
// balances are treated as zero.
func (m CredentialMetadata) BalanceInt() *big.Int {
	n, ok := new(big.Int).SetString(m.Balance, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// ExpiresAt returns the instant after which the credential can no longer
// satisfy an action.
func (c Credential) ExpiresAt() time.Time {
	return c.VerifiedAt.Add(CredentialTTL)
}

// IsExpired reports whether the credential is past its freshness window at now.
func (c Credential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt())
}

// IsSuperseded reports whether the credential was reverified or soft-deleted.
func (c Credential) IsSuperseded() bool {
	return c.ReverifiedID != nil || c.DeletedAt != nil
}

// IsCurrent reports whether the credential may be used to satisfy an action at now.
func (c Credential) IsCurrent(now time.Time) bool {
	return !c.IsSuperseded() && !c.IsExpired(now)
}

// LineageRoot returns the id a reverification of c should record as its parent:
// c's own parent if it has one, otherwise c itself.
func (c Credential) LineageRoot() string {
	if c.ParentID != nil {
		return *c.ParentID
	}
	return c.ID
}

// WithoutProof returns a copy of c with the proof stripped.
func (c Credential) WithoutProof() Credential {
	c.Proof = nil
	return c
}
