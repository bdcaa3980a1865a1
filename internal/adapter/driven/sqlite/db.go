package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// Pool sizes. The single writer serializes credential reverification and
// execution logging instead of failing with "database is locked".
const (
	writerConns = 1
	readerConns = 4
)

// connPragmas are applied to every connection of both pools.
var connPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

// DB provides dual reader/writer database connections.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database file at dbPath in WAL mode.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	return openDB(ctx, buildDSN(dbPath, false), dbPath)
}

// buildDSN returns a modernc DSN for name. In-memory databases use a shared
// cache so both pools see the same data, and skip WAL which they cannot use.
func buildDSN(name string, memory bool) string {
	q := url.Values{}
	if memory {
		q.Set("mode", "memory")
		q.Set("cache", "shared")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + name + "?" + q.Encode()
}

func openDB(ctx context.Context, dsn, path string) (*DB, error) {
	writer, err := openPool(ctx, dsn, writerConns)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	reader, err := openPool(ctx, dsn, readerConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(ctx context.Context, dsn string, conns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pool.SetMaxOpenConns(conns)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Ping checks both pools. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Close closes both pools.
func (db *DB) Close() error {
	return errors.Join(db.Reader.Close(), db.Writer.Close())
}
