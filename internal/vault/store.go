package vault

import (
	"context"
	"errors"

	"github.com/firmkit/tplsync/internal/models"
)

// Vault errors.
var (
	ErrInvalidFirm      = errors.New("invalid firm id")
	ErrInvalidTokenPair = errors.New("token pair requires an access and a refresh token")
	ErrNoDefaultFirm    = errors.New("no default firm set")
)

// TokenStore persists one token pair per firm. Put replaces the pair of a
// firm as a whole.
type TokenStore interface {
	Get(ctx context.Context, firm string) (models.TokenPair, bool, error)
	Put(ctx context.Context, firm string, pair models.TokenPair) error
}

// FirmLister is implemented by stores that can enumerate their firms.
type FirmLister interface {
	Firms(ctx context.Context) ([]string, error)
}

// ValidatePut checks the arguments of a TokenStore.Put call.
func ValidatePut(firm string, pair models.TokenPair) error {
	if firm == "" {
		return ErrInvalidFirm
	}
	if !pair.Valid() {
		return ErrInvalidTokenPair
	}
	return nil
}

// DefaultFirmStore remembers the firm used when none is given.
type DefaultFirmStore interface {
	DefaultFirm(ctx context.Context) (string, error)
	SetDefaultFirm(ctx context.Context, firm string) error
}

// Store is a complete credentials backend.
type Store interface {
	TokenStore
	FirmLister
	DefaultFirmStore
}

var _ Store = (*FileStore)(nil)
