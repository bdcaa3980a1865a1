package driven

import (
	"context"
	"math/big"
	"time"
)

// Block is the subset of a block header the storage oracle needs.
type Block struct {
	Number    uint64
	Timestamp time.Time
}

// StorageProof is an account's storage root at a block together with the
// per-key proofs returned by the node.
type StorageProof struct {
	StorageHash  string
	StorageProof []StorageSlotProof
}

// StorageSlotProof is the value of one storage key and its merkle proof nodes.
type StorageSlotProof struct {
	Key   string
	Value *big.Int
	Proof []string
}

// ChainClient defines the driven port for reading historical chain state.
// Implementations return model.ErrUnsupportedChain for unconfigured chains.
type ChainClient interface {
	GetBlock(ctx context.Context, chainID, blockNumber uint64) (*Block, error)
	GetStorageProof(ctx context.Context, chainID uint64, address string, keys []string, blockNumber uint64) (*StorageProof, error)
}
