package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/badgeidle/internal/shared"
)

// LoginKeyRepository stores one login key per account name.
type LoginKeyRepository struct {
	db *sql.DB
}

// NewLoginKeyRepository creates a new [LoginKeyRepository] with the given database connection
func NewLoginKeyRepository(db *sql.DB) *LoginKeyRepository {
	return &LoginKeyRepository{db: db}
}

// Get returns the stored key for account, or "" when none is stored.
func (r *LoginKeyRepository) Get(ctx context.Context, account string) (string, error) {
	if account == "" {
		return "", fmt.Errorf("%w: account name is required", shared.ErrInvalidInput)
	}

	var key string
	err := r.db.QueryRowContext(ctx, `SELECT login_key FROM login_keys WHERE account_name = ?`, account).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query login key: %w", err)
	}
	return key, nil
}

// Save inserts or replaces the key for account.
func (r *LoginKeyRepository) Save(ctx context.Context, account, key string) error {
	if account == "" || key == "" {
		return fmt.Errorf("%w: account name and key are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO login_keys (account_name, login_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_name) DO UPDATE SET login_key = excluded.login_key, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, account, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save login key: %w", err)
	}
	return nil
}

// Delete removes the key for account. Deleting a missing key is not an error.
func (r *LoginKeyRepository) Delete(ctx context.Context, account string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM login_keys WHERE account_name = ?`, account); err != nil {
		return fmt.Errorf("failed to delete login key: %w", err)
	}
	return nil
}

// UpdatedAt reports when the key for account was last saved.
func (r *LoginKeyRepository) UpdatedAt(ctx context.Context, account string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM login_keys WHERE account_name = ?`, account).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query login key: %w", err)
	}
	return at, true, nil
}
