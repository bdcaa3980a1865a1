package ethereum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerdock/anonzora/internal/domain/model"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer answers JSON-RPC calls with results from handle. A nil result
// is encoded as JSON null.
func newRPCServer(t *testing.T, handle func(method string, params []json.RawMessage) any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req.Method, req.Params),
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func dialTest(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c, err := DialWithHTTPClient(context.Background(), map[uint64]string{1: srv.URL}, srv.Client())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c
}

func TestClient_GetBlock(t *testing.T) {
	var gotParams []json.RawMessage
	srv := newRPCServer(t, func(method string, params []json.RawMessage) any {
		assert.Equal(t, "eth_getBlockByNumber", method)
		gotParams = params
		return map[string]any{"number": "0x64", "timestamp": "0x6553f100"}
	})
	c := dialTest(t, srv)

	block, err := c.GetBlock(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), block.Number)
	assert.Equal(t, time.Unix(0x6553f100, 0).UTC(), block.Timestamp)
	require.Len(t, gotParams, 2)
	assert.JSONEq(t, `"0x64"`, string(gotParams[0]))
	assert.JSONEq(t, `false`, string(gotParams[1]))
}

func TestClient_GetBlockNotFound(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) any { return nil })
	c := dialTest(t, srv)

	_, err := c.GetBlock(context.Background(), 1, 100)
	assert.Error(t, err)
}

func TestClient_GetStorageProof(t *testing.T) {
	const storageHash = "0x1f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a79881f2e3d4c5b6a7988"
	const address = "0x00000000000000000000000000000000000000aa"

	var gotParams []json.RawMessage
	srv := newRPCServer(t, func(method string, params []json.RawMessage) any {
		assert.Equal(t, "eth_getProof", method)
		gotParams = params
		return map[string]any{
			"storageHash": storageHash,
			"storageProof": []map[string]any{
				{"key": "0x01", "value": "0x2a", "proof": []string{"0xf8"}},
			},
		}
	})
	c := dialTest(t, srv)

	proof, err := c.GetStorageProof(context.Background(), 1, address, []string{"0x01"}, 100)
	require.NoError(t, err)

	assert.Equal(t, storageHash, proof.StorageHash)
	require.Len(t, proof.StorageProof, 1)
	assert.Equal(t, "0x01", proof.StorageProof[0].Key)
	assert.Equal(t, int64(42), proof.StorageProof[0].Value.Int64())

	require.Len(t, gotParams, 3)
	assert.JSONEq(t, `"`+address+`"`, string(gotParams[0]))
	assert.JSONEq(t, `["0x01"]`, string(gotParams[1]))
	assert.JSONEq(t, `"0x64"`, string(gotParams[2]))
}

func TestClient_UnsupportedChain(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) any { return nil })
	c := dialTest(t, srv)

	_, err := c.GetBlock(context.Background(), 137, 1)
	require.ErrorIs(t, err, model.ErrUnsupportedChain)

	_, err = c.GetStorageProof(context.Background(), 137, "0x00000000000000000000000000000000000000aa", nil, 1)
	require.ErrorIs(t, err, model.ErrUnsupportedChain)
}

func TestClient_InvalidAddress(t *testing.T) {
	srv := newRPCServer(t, func(string, []json.RawMessage) any { return nil })
	c := dialTest(t, srv)

	_, err := c.GetStorageProof(context.Background(), 1, "not-an-address", nil, 1)
	assert.Error(t, err)
}

func TestClient_Ping(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ []json.RawMessage) any {
		assert.Equal(t, "eth_chainId", method)
		return "0x1"
	})
	require.NoError(t, dialTest(t, srv).Ping(context.Background()))

	wrong := newRPCServer(t, func(string, []json.RawMessage) any { return "0x2105" })
	err := dialTest(t, wrong).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serves chain 8453")
}
