package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/firmkit/tplsync/internal/models"
	"github.com/firmkit/tplsync/internal/vault"
)

const defaultFirmKey = "default_firm"

// TokenRepository stores token pairs in SQLite.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

var _ vault.Store = (*TokenRepository)(nil)

// Get returns the pair stored for firm.
func (r *TokenRepository) Get(ctx context.Context, firm string) (models.TokenPair, bool, error) {
	var pair models.TokenPair
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, updated_at FROM tokens WHERE firm = ?
	`, firm).Scan(&pair.AccessToken, &pair.RefreshToken, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TokenPair{}, false, nil
	}
	if err != nil {
		return models.TokenPair{}, false, fmt.Errorf("failed to read tokens: %w", err)
	}
	if t, err := time.Parse(timestampFormat, updatedAt); err == nil {
		pair.UpdatedAt = t
	}
	return pair, true, nil
}

// Put replaces the pair stored for firm.
func (r *TokenRepository) Put(ctx context.Context, firm string, pair models.TokenPair) error {
	if err := vault.ValidatePut(firm, pair); err != nil {
		return err
	}
	if pair.UpdatedAt.IsZero() {
		pair.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (firm, access_token, refresh_token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(firm) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, firm, pair.AccessToken, pair.RefreshToken, pair.UpdatedAt.UTC().Format(timestampFormat))
	if err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// Firms lists the firms with stored tokens, sorted.
func (r *TokenRepository) Firms(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT firm FROM tokens ORDER BY firm`)
	if err != nil {
		return nil, fmt.Errorf("failed to list firms: %w", err)
	}
	defer rows.Close()

	var firms []string
	for rows.Next() {
		var firm string
		if err := rows.Scan(&firm); err != nil {
			return nil, fmt.Errorf("failed to scan firm: %w", err)
		}
		firms = append(firms, firm)
	}
	return firms, rows.Err()
}

// DefaultFirm returns the stored default firm.
func (r *TokenRepository) DefaultFirm(ctx context.Context) (string, error) {
	var firm string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, defaultFirmKey).Scan(&firm)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && firm == "") {
		return "", vault.ErrNoDefaultFirm
	}
	if err != nil {
		return "", fmt.Errorf("failed to read default firm: %w", err)
	}
	return firm, nil
}

// SetDefaultFirm stores the default firm.
func (r *TokenRepository) SetDefaultFirm(ctx context.Context, firm string) error {
	if firm == "" {
		return vault.ErrInvalidFirm
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, defaultFirmKey, firm)
	if err != nil {
		return fmt.Errorf("failed to store default firm: %w", err)
	}
	return nil
}
