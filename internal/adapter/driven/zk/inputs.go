package zk

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// Public input layout shared by every balance circuit version.
const (
	inputBalance     = 0
	inputChainID     = 1
	inputBlockNumber = 2
	inputToken       = 3
	inputBalanceSlot = 4
	inputStorageHash = 5

	storageHashLen = 32

	// NumPublicInputs is the fixed width of a balance proof's public inputs.
	NumPublicInputs = inputStorageHash + storageHashLen
)

// parseField parses one public input. Entries are 0x-prefixed hex or decimal.
func parseField(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty field element")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative field element %q", s)
	}

	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("malformed field element %q", s)
	}
	return n, nil
}

func parseFields(inputs []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(inputs))
	for i, s := range inputs {
		n, err := parseField(s)
		if err != nil {
			return nil, fmt.Errorf("public input %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// ParsePublicInputs extracts credential metadata from a balance proof's
// public inputs. It performs no cryptography.
func ParsePublicInputs(inputs []string) (model.CredentialMetadata, error) {
	if len(inputs) != NumPublicInputs {
		return model.CredentialMetadata{}, fmt.Errorf("%w: expected %d public inputs, got %d",
			model.ErrInvalidProof, NumPublicInputs, len(inputs))
	}

	fields, err := parseFields(inputs)
	if err != nil {
		return model.CredentialMetadata{}, fmt.Errorf("%w: %w", model.ErrInvalidProof, err)
	}

	chainID := fields[inputChainID]
	if !chainID.IsUint64() {
		return model.CredentialMetadata{}, fmt.Errorf("%w: chain id out of range", model.ErrInvalidProof)
	}
	blockNumber := fields[inputBlockNumber]
	if !blockNumber.IsUint64() {
		return model.CredentialMetadata{}, fmt.Errorf("%w: block number out of range", model.ErrInvalidProof)
	}

	// Only the low 160 bits of the token field carry the address.
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	token := common.BigToAddress(new(big.Int).And(fields[inputToken], mask))

	hash := make([]byte, storageHashLen)
	for i := range storageHashLen {
		b := fields[inputStorageHash+i]
		if !b.IsUint64() || b.Uint64() > 0xff {
			return model.CredentialMetadata{}, fmt.Errorf("%w: storage hash byte %d out of range", model.ErrInvalidProof, i)
		}
		hash[i] = byte(b.Uint64())
	}

	return model.CredentialMetadata{
		ChainID:      chainID.Uint64(),
		TokenAddress: strings.ToLower(token.Hex()),
		Balance:      fields[inputBalance].String(),
		BlockNumber:  blockNumber.Uint64(),
		BalanceSlot:  fields[inputBalanceSlot].String(),
		StorageHash:  hexutil.Encode(hash),
	}, nil
}
