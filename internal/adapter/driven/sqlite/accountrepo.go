package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
type AccountRepo struct {
	db  *DB
	now func() time.Time
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db, now: time.Now}
}

// Create inserts a new active account.
func (r *AccountRepo) Create(ctx context.Context, name, keyHash, keyPrefix string) (model.Account, error) {
	const query = `INSERT INTO api_keys (key_hash, key_prefix, name, is_active, created_at) VALUES (?, ?, ?, 1, ?)`

	createdAt := r.now().UTC()
	res, err := r.db.Writer.ExecContext(ctx, query, keyHash, keyPrefix, name, formatTime(createdAt))
	if err != nil {
		return model.Account{}, fmt.Errorf("create account %q: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Account{}, fmt.Errorf("read account id: %w", err)
	}

	return model.Account{
		ID:        id,
		Name:      name,
		KeyPrefix: keyPrefix,
		Active:    true,
		CreatedAt: createdAt,
	}, nil
}

// GetByKeyHash returns the account owning keyHash, or nil, nil if none does.
func (r *AccountRepo) GetByKeyHash(ctx context.Context, keyHash string) (*model.Account, error) {
	const query = `SELECT id, name, key_prefix, is_active, created_at, last_used_at FROM api_keys WHERE key_hash = ?`

	acct, err := scanAccount(r.db.Reader.QueryRowContext(ctx, query, keyHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by key hash: %w", errors.Join(driven.ErrStoreUnavailable, err))
	}

	return acct, nil
}

// List returns all accounts, newest first.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const query = `SELECT id, name, key_prefix, is_active, created_at, last_used_at FROM api_keys ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Deactivate clears the active flag on the account.
func (r *AccountRepo) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE api_keys SET is_active = 0 WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate account %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deactivate account %d: %w", id, driven.ErrAccountNotFound)
	}

	return nil
}

// TouchLastUsed stamps last_used_at.
func (r *AccountRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE api_keys SET last_used_at = ? WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), id); err != nil {
		return fmt.Errorf("touch account %d: %w", id, err)
	}
	return nil
}

func scanAccount(s scanner) (*model.Account, error) {
	var acct model.Account
	var createdAt string
	var lastUsed sql.NullString

	if err := s.Scan(&acct.ID, &acct.Name, &acct.KeyPrefix, &acct.Active, &createdAt, &lastUsed); err != nil {
		return nil, err
	}

	var err error
	acct.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	acct.LastUsedAt, err = parseNullTime(lastUsed)
	if err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}

	return &acct, nil
}
