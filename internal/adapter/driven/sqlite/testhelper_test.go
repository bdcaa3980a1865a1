package sqlite

import (
	"context"
	"net/url"
	"testing"
)

// setupTestDB opens a migrated in-memory database private to the test.
// The name is derived from t.Name(), percent-encoded so subtest slashes
// cannot be read as query parameters.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	name := url.PathEscape(t.Name())
	db, err := openDB(context.Background(), buildDSN(name, true), name)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
