package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

const credentialColumns = `id, class, type, version, metadata, verified_at, parent_id, reverified_id, vault_id, created_at, deleted_at`

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// The proof column is write-only: it is stored for audit and never read back.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Insert stores cred unless its ID already exists, then returns the stored row.
// Concurrent inserts of the same proof converge on a single row.
func (r *CredentialRepo) Insert(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	args, err := credentialInsertArgs(cred)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.Writer.ExecContext(ctx, insertCredentialQuery, args...); err != nil {
		return nil, fmt.Errorf("insert credential %s: %w", cred.ID, err)
	}

	stored, err := getCredential(ctx, r.db.Writer, cred.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("insert credential %s: row missing after insert", cred.ID)
	}
	return stored, nil
}

// InsertReverification inserts child and links parentID to it atomically.
// The parent update only applies while its reverified_id is still NULL, so
// two racing reverifications of the same parent cannot both commit.
func (r *CredentialRepo) InsertReverification(ctx context.Context, child model.Credential, parentID string) (*model.Credential, error) {
	args, err := credentialInsertArgs(child)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, insertCredentialQuery, args...); err != nil {
		return nil, fmt.Errorf("insert credential %s: %w", child.ID, err)
	}

	const linkQuery = `UPDATE credentials SET reverified_id = ? WHERE id = ? AND reverified_id IS NULL`
	result, err := tx.ExecContext(ctx, linkQuery, child.ID, parentID)
	if err != nil {
		return nil, fmt.Errorf("link credential %s to %s: %w", parentID, child.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}

	if n == 0 {
		var successor sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT reverified_id FROM credentials WHERE id = ?`, parentID).Scan(&successor)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reverify %s: %w", parentID, model.ErrParentNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("get parent credential %s: %w", parentID, err)
		}
		// A retried submission of the same reverification is not a branch.
		if successor.String != child.ID {
			return nil, fmt.Errorf("reverify %s: %w", parentID, model.ErrAlreadyReverified)
		}
	}

	stored, err := getCredential(ctx, tx, child.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reverification of %s: %w", parentID, err)
	}

	return stored, nil
}

// Get returns the credential with the given ID, or (nil, nil) if it does not exist.
func (r *CredentialRepo) Get(ctx context.Context, id string) (*model.Credential, error) {
	return getCredential(ctx, r.db.Reader, id)
}

// GetMany returns the existing credentials among ids.
func (r *CredentialRepo) GetMany(ctx context.Context, ids []string) ([]model.Credential, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id IN (` + placeholders + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return r.queryCredentials(ctx, query, args...)
}

// SetVault assigns the credential to vaultID, or detaches it when vaultID is nil.
func (r *CredentialRepo) SetVault(ctx context.Context, id string, vaultID *string) error {
	const query = `UPDATE credentials SET vault_id = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Writer.ExecContext(ctx, query, nullableString(vaultID), id)
	if err != nil {
		return fmt.Errorf("set vault for credential %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set vault for credential %s: %w", id, model.ErrCredentialNotFound)
	}

	return nil
}

// ListByVault returns the non-deleted credentials held by vaultID, newest first.
func (r *CredentialRepo) ListByVault(ctx context.Context, vaultID string) ([]model.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE vault_id = ? AND deleted_at IS NULL ORDER BY verified_at DESC, id`
	return r.queryCredentials(ctx, query, vaultID)
}

func (r *CredentialRepo) queryCredentials(ctx context.Context, query string, args ...any) ([]model.Credential, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

const insertCredentialQuery = `
	INSERT INTO credentials (id, class, type, version, metadata, proof, verified_at, parent_id, vault_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
`

func credentialInsertArgs(cred model.Credential) ([]any, error) {
	metadata, err := json.Marshal(cred.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal credential metadata: %w", err)
	}

	proof := []byte("null")
	if cred.Proof != nil {
		proof, err = json.Marshal(cred.Proof)
		if err != nil {
			return nil, fmt.Errorf("marshal credential proof: %w", err)
		}
	}

	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return []any{
		cred.ID, cred.Class, string(cred.Type), cred.Version,
		string(metadata), string(proof), formatTime(cred.VerifiedAt),
		nullableString(cred.ParentID), nullableString(cred.VaultID), formatTime(createdAt),
	}, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCredential(ctx context.Context, q queryRower, id string) (*model.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	cred, err := scanCredential(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	return cred, nil
}

func scanCredential(s scanner) (*model.Credential, error) {
	var (
		cred                            model.Credential
		credType, metadata              string
		verifiedAt, createdAt           string
		parentID, reverifiedID, vaultID sql.NullString
		deletedAt                       sql.NullString
	)

	err := s.Scan(
		&cred.ID, &cred.Class, &credType, &cred.Version, &metadata,
		&verifiedAt, &parentID, &reverifiedID, &vaultID, &createdAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	cred.Type = model.CredentialType(credType)
	if err := json.Unmarshal([]byte(metadata), &cred.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	if cred.VerifiedAt, err = parseTime(verifiedAt); err != nil {
		return nil, fmt.Errorf("parse verified_at: %w", err)
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cred.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parse deleted_at: %w", err)
	}

	cred.ParentID = stringPtr(parentID)
	cred.ReverifiedID = stringPtr(reverifiedID)
	cred.VaultID = stringPtr(vaultID)

	return &cred, nil
}
