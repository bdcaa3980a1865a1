// Package redis implements the dedup store on a shared Redis instance so that
// every replica of the service sees the same reservations.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DedupStore = (*DedupStore)(nil)

const keyPrefix = "anonzora:dedup:"

// DedupStore reserves keys with SET NX PX, which is atomic across clients.
type DedupStore struct {
	client goredis.UniversalClient
}

// NewDedupStore connects to addr and selects db.
func NewDedupStore(addr string, db int) *DedupStore {
	return NewDedupStoreWithClient(goredis.NewClient(&goredis.Options{
		Addr: addr,
		DB:   db,
	}))
}

// NewDedupStoreWithClient wraps an existing client. Used by tests to point at
// an in-process server.
func NewDedupStoreWithClient(client goredis.UniversalClient) *DedupStore {
	return &DedupStore{client: client}
}

// Reserve claims key for ttl. It returns false when another request holds it.
func (s *DedupStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve dedup key: %w", err)
	}
	return ok, nil
}

// Refresh resets the expiry of key to ttl.
func (s *DedupStore) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.PExpire(ctx, keyPrefix+key, ttl).Err(); err != nil {
		return fmt.Errorf("refresh dedup key: %w", err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *DedupStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *DedupStore) Close() error {
	return s.client.Close()
}
