// Package ethereum reads historical block and storage state from EVM JSON-RPC nodes.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChainClient = (*Client)(nil)

// Client holds one JSON-RPC connection per configured chain.
type Client struct {
	chains map[uint64]*rpc.Client
}

// Dial connects to every endpoint in urls (chain id to RPC URL) using the
// default HTTP client.
func Dial(ctx context.Context, urls map[uint64]string) (*Client, error) {
	return DialWithHTTPClient(ctx, urls, &http.Client{Timeout: 30 * time.Second})
}

// DialWithHTTPClient connects to every endpoint in urls using httpClient.
// Used by tests to inject an httptest client.
func DialWithHTTPClient(ctx context.Context, urls map[uint64]string, httpClient *http.Client) (*Client, error) {
	c := &Client{chains: make(map[uint64]*rpc.Client, len(urls))}
	for chainID, url := range urls {
		rc, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
		}
		c.chains[chainID] = rc
	}
	return c, nil
}

// Close closes every chain connection.
func (c *Client) Close() {
	for _, rc := range c.chains {
		rc.Close()
	}
}

// Chains returns the configured chain ids.
func (c *Client) Chains() []uint64 {
	ids := make([]uint64, 0, len(c.chains))
	for id := range c.chains {
		ids = append(ids, id)
	}
	return ids
}

// Ping checks every configured node answers eth_chainId with the chain id it
// was configured for.
func (c *Client) Ping(ctx context.Context) error {
	for chainID, rc := range c.chains {
		var got hexutil.Uint64
		if err := rc.CallContext(ctx, &got, "eth_chainId"); err != nil {
			return fmt.Errorf("ping chain %d: %w", chainID, err)
		}
		if uint64(got) != chainID {
			return fmt.Errorf("node configured for chain %d serves chain %d", chainID, uint64(got))
		}
	}
	return nil
}

type rpcBlock struct {
	Number    *hexutil.Big   `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// GetBlock fetches the header fields of blockNumber on chainID.
func (c *Client) GetBlock(ctx context.Context, chainID, blockNumber uint64) (*driven.Block, error) {
	rc, err := c.chain(chainID)
	if err != nil {
		return nil, err
	}

	var head *rpcBlock
	number := hexutil.EncodeBig(new(big.Int).SetUint64(blockNumber))
	if err := rc.CallContext(ctx, &head, "eth_getBlockByNumber", number, false); err != nil {
		return nil, fmt.Errorf("get block %d on chain %d: %w", blockNumber, chainID, err)
	}
	if head == nil {
		return nil, fmt.Errorf("get block %d on chain %d: block not found", blockNumber, chainID)
	}

	return &driven.Block{
		Number:    blockNumber,
		Timestamp: time.Unix(int64(head.Timestamp), 0).UTC(),
	}, nil
}

type rpcStorageProof struct {
	StorageHash  common.Hash `json:"storageHash"`
	StorageProof []struct {
		Key   string       `json:"key"`
		Value *hexutil.Big `json:"value"`
		Proof []string     `json:"proof"`
	} `json:"storageProof"`
}

// GetStorageProof calls eth_getProof for address and keys at blockNumber.
func (c *Client) GetStorageProof(ctx context.Context, chainID uint64, address string, keys []string, blockNumber uint64) (*driven.StorageProof, error) {
	rc, err := c.chain(chainID)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("get storage proof: invalid address %q", address)
	}

	if keys == nil {
		keys = []string{}
	}

	var res rpcStorageProof
	number := hexutil.EncodeBig(new(big.Int).SetUint64(blockNumber))
	if err := rc.CallContext(ctx, &res, "eth_getProof", common.HexToAddress(address), keys, number); err != nil {
		return nil, fmt.Errorf("get storage proof for %s at block %d on chain %d: %w", address, blockNumber, chainID, err)
	}

	proof := &driven.StorageProof{
		StorageHash:  res.StorageHash.Hex(),
		StorageProof: make([]driven.StorageSlotProof, 0, len(res.StorageProof)),
	}
	for _, sp := range res.StorageProof {
		value := new(big.Int)
		if sp.Value != nil {
			value = sp.Value.ToInt()
		}
		proof.StorageProof = append(proof.StorageProof, driven.StorageSlotProof{
			Key:   sp.Key,
			Value: value,
			Proof: sp.Proof,
		})
	}

	return proof, nil
}

func (c *Client) chain(chainID uint64) (*rpc.Client, error) {
	rc, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, model.ErrUnsupportedChain)
	}
	return rc, nil
}
