// Package auth defines the auth transport contract and a document-store backed
// implementation issuing JWT session tokens.
package auth

import (
	"context"
	"errors"

	"github.com/shoplist/core/types"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrMissingFields      = errors.New("missing required fields")
)

// Transport issues and resolves sessions for accounts.
type Transport interface {
	CreateAccount(ctx context.Context, email, password, name string) (types.Account, error)
	CreateSession(ctx context.Context, email, password string) (types.Session, error)
	GetCurrentAccount(ctx context.Context, token string) (types.Account, error)
	DeleteSession(ctx context.Context, token string) error
}
