package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DedupKey derives the at-most-once key of an action request. Data is
// canonicalized first, so key order and whitespace do not produce distinct keys.
func DedupKey(actionID string, data json.RawMessage) (string, error) {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(actionID))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes data with sorted object keys and no insignificant
// whitespace. Numbers keep their original text.
func canonicalJSON(data json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("null"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize action data: %w", err)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize action data: %w", err)
	}
	return out, nil
}
