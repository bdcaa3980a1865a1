package application

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// StorageOracle cross-checks the storage root a proof claims against the chain.
type StorageOracle struct {
	chain driven.ChainClient
}

// NewStorageOracle creates an oracle reading through chain.
func NewStorageOracle(chain driven.ChainClient) *StorageOracle {
	return &StorageOracle{chain: chain}
}

// BalanceStorageKey returns the storage key of a balance mapping entry for the
// zero address at balanceSlot. Only the account's storage root is compared, so
// the key merely has to be one the node can produce a proof for.
func BalanceStorageKey(balanceSlot *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		common.LeftPadBytes(common.Address{}.Bytes(), 32),
		common.LeftPadBytes(balanceSlot.Bytes(), 32),
	)
}

// Check fetches the block and the token's storage proof at md.BlockNumber and
// requires the fetched storage hash to equal md.StorageHash. It returns the
// block timestamp, which becomes the credential's verification time.
func (o *StorageOracle) Check(ctx context.Context, md model.CredentialMetadata) (time.Time, error) {
	slot, ok := new(big.Int).SetString(md.BalanceSlot, 10)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: malformed balance slot %q", model.ErrInvalidStorageProof, md.BalanceSlot)
	}

	block, err := o.chain.GetBlock(ctx, md.ChainID, md.BlockNumber)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch block: %w", err)
	}

	key := BalanceStorageKey(slot)
	proof, err := o.chain.GetStorageProof(ctx, md.ChainID, md.TokenAddress, []string{key.Hex()}, md.BlockNumber)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch storage proof: %w", err)
	}

	if !strings.EqualFold(proof.StorageHash, md.StorageHash) {
		return time.Time{}, fmt.Errorf("%w: storage hash %s does not match chain %s at block %d",
			model.ErrInvalidStorageProof, md.StorageHash, proof.StorageHash, md.BlockNumber)
	}

	return block.Timestamp, nil
}
