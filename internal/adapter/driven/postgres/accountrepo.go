package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the PostgreSQL implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, name, key_prefix, is_active, created_at, last_used_at`

// Create inserts a new active account.
func (r *AccountRepo) Create(ctx context.Context, name, keyHash, keyPrefix string) (model.Account, error) {
	const query = `INSERT INTO api_keys (key_hash, key_prefix, name) VALUES ($1, $2, $3) RETURNING ` + accountColumns

	acct, err := scanAccount(r.db.Pool.QueryRow(ctx, query, keyHash, keyPrefix, name))
	if err != nil {
		return model.Account{}, fmt.Errorf("create account %q: %w", name, err)
	}
	return acct, nil
}

// GetByKeyHash returns the account owning keyHash, or nil, nil if none does.
func (r *AccountRepo) GetByKeyHash(ctx context.Context, keyHash string) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM api_keys WHERE key_hash = $1`

	acct, err := scanAccount(r.db.Pool.QueryRow(ctx, query, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(driven.ErrStoreUnavailable, fmt.Errorf("get account by key hash: %w", err))
	}
	return &acct, nil
}

// List returns every account, newest first.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM api_keys ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool.Query(ctx, query)
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
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Deactivate clears the active flag.
func (r *AccountRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate account %d: %w", id, driven.ErrAccountNotFound)
	}
	return nil
}

// TouchLastUsed stamps last_used_at.
func (r *AccountRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.Pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, at.UTC(), id); err != nil {
		return fmt.Errorf("touch account %d: %w", id, err)
	}
	return nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var acct model.Account
	var lastUsed *time.Time
	if err := row.Scan(&acct.ID, &acct.Name, &acct.KeyPrefix, &acct.Active, &acct.CreatedAt, &lastUsed); err != nil {
		return model.Account{}, err
	}
	acct.CreatedAt = acct.CreatedAt.UTC()
	acct.LastUsedAt = utcPtr(lastUsed)
	return acct, nil
}
