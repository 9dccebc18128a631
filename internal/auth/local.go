package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/types"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 24 * time.Hour

type accountDoc struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
}

type sessionDoc struct {
	AccountID string `json:"accountId"`
	ExpiresAt string `json:"expiresAt"`
}

// LocalTransport keeps accounts and sessions as documents in a docstore.Client.
// A session token is a JWT whose ID claim names the session document, so
// deleting that document revokes the token.
type LocalTransport struct {
	store    docstore.Client
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	cost     int
}

// LocalOption customises a LocalTransport.
type LocalOption func(*LocalTransport)

// WithTokenTTL sets the session lifetime.
func WithTokenTTL(ttl time.Duration) LocalOption {
	return func(t *LocalTransport) {
		if ttl > 0 {
			t.tokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) LocalOption {
	return func(t *LocalTransport) { t.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LocalOption {
	return func(t *LocalTransport) { t.now = now }
}

func NewLocalTransport(store docstore.Client, jwtSecret string, opts ...LocalOption) (*LocalTransport, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	t := &LocalTransport{
		store:    store,
		secret:   []byte(jwtSecret),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *LocalTransport) CreateAccount(ctx context.Context, email, password, name string) (types.Account, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return types.Account{}, ErrMissingFields
	}

	existing, err := t.store.ListDocuments(ctx, docstore.CollectionAccounts, docstore.Equal("email", email))
	if err != nil {
		return types.Account{}, fmt.Errorf("check account: %w", err)
	}
	if len(existing) > 0 {
		return types.Account{}, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), t.cost)
	if err != nil {
		return types.Account{}, fmt.Errorf("hash password: %w", err)
	}

	data, err := docstore.Encode(accountDoc{Email: email, Name: name, PasswordHash: string(hashed)})
	if err != nil {
		return types.Account{}, err
	}
	doc, err := t.store.CreateDocument(ctx, docstore.CollectionAccounts, data)
	if err != nil {
		return types.Account{}, fmt.Errorf("create account: %w", err)
	}
	return types.Account{ID: doc.ID, Email: email, Name: name}, nil
}

func (t *LocalTransport) CreateSession(ctx context.Context, email, password string) (types.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.Session{}, ErrInvalidCredentials
	}

	docs, err := t.store.ListDocuments(ctx, docstore.CollectionAccounts, docstore.Equal("email", email))
	if err != nil {
		return types.Session{}, fmt.Errorf("lookup account: %w", err)
	}
	if len(docs) == 0 {
		return types.Session{}, ErrInvalidCredentials
	}
	var account accountDoc
	if err := docs[0].Decode(&account); err != nil {
		return types.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Session{}, ErrInvalidCredentials
	}

	now := t.now()
	expires := now.Add(t.tokenTTL)
	data, err := docstore.Encode(sessionDoc{AccountID: docs[0].ID, ExpiresAt: expires.UTC().Format(time.RFC3339)})
	if err != nil {
		return types.Session{}, err
	}
	sess, err := t.store.CreateDocument(ctx, docstore.CollectionSessions, data)
	if err != nil {
		return types.Session{}, fmt.Errorf("create session: %w", err)
	}

	token, expiresAt, err := issueToken(docs[0].ID, sess.ID, t.secret, now, t.tokenTTL)
	if err != nil {
		_ = t.store.DeleteDocument(ctx, docstore.CollectionSessions, sess.ID)
		return types.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return types.Session{Token: token, AccountID: docs[0].ID, ExpiresAt: expiresAt}, nil
}

func (t *LocalTransport) GetCurrentAccount(ctx context.Context, token string) (types.Account, error) {
	claims, err := t.verify(ctx, token)
	if err != nil {
		return types.Account{}, err
	}

	doc, err := t.store.GetDocument(ctx, docstore.CollectionAccounts, claims.AccountID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return types.Account{}, ErrInvalidToken
		}
		return types.Account{}, err
	}
	var account accountDoc
	if err := doc.Decode(&account); err != nil {
		return types.Account{}, err
	}
	return types.Account{ID: doc.ID, Email: account.Email, Name: account.Name}, nil
}

// Authenticate returns the account id behind a valid, unrevoked token.
func (t *LocalTransport) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := t.verify(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.AccountID, nil
}

func (t *LocalTransport) DeleteSession(ctx context.Context, token string) error {
	claims, err := t.verify(ctx, token)
	if err != nil {
		return err
	}
	if err := t.store.DeleteDocument(ctx, docstore.CollectionSessions, claims.SessionID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

func (t *LocalTransport) verify(ctx context.Context, token string) (tokenClaims, error) {
	claims, err := parseToken(token, t.secret)
	if err != nil {
		return tokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	doc, err := t.store.GetDocument(ctx, docstore.CollectionSessions, claims.SessionID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return tokenClaims{}, ErrInvalidToken
		}
		return tokenClaims{}, err
	}
	var sess sessionDoc
	if err := doc.Decode(&sess); err != nil {
		return tokenClaims{}, err
	}
	if sess.AccountID != claims.AccountID {
		return tokenClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
