// Package session resolves the signed-in user for the core. A Context is
// created once at application start and disposed with SignOut.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/auth"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/internal/rbac"
	"github.com/shoplist/core/types"
)

var (
	ErrNoSession = errors.New("no active session")
	ErrNoProfile = errors.New("no user profile for account")
)

// DefaultRole is assigned to profiles created at sign-up.
const DefaultRole = types.RoleAdmin

// Result is the outcome of resolving the current user: either
// Authenticated or Unauthenticated.
type Result interface {
	isResult()
}

// Authenticated carries the resolved profile.
type Authenticated struct {
	Profile types.UserProfile
}

// Unauthenticated carries why no profile could be resolved. A missing
// session and a failed lookup are reported the same way.
type Unauthenticated struct {
	Reason error
}

func (Authenticated) isResult()   {}
func (Unauthenticated) isResult() {}

type profileDoc struct {
	AccountID string     `json:"accountId"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Role      types.Role `json:"role"`
}

// Context owns the session token and resolves it to a profile on demand.
type Context struct {
	transport auth.Transport
	store     docstore.Client
	logger    *slog.Logger

	mu    sync.RWMutex
	token string
}

func New(transport auth.Transport, store docstore.Client, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		transport: transport,
		store:     store,
		logger:    logger,
	}
}

// Token returns the current bearer token, empty when signed out.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SignUp creates the account, signs in and writes the profile document.
func (c *Context) SignUp(ctx context.Context, email, password, username string) (types.UserProfile, error) {
	const op = "signUp"
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || password == "" || username == "" {
		return types.UserProfile{}, apperr.Validation(op, "email, password and username are required")
	}

	account, err := c.transport.CreateAccount(ctx, email, password, username)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			return types.UserProfile{}, apperr.Validation(op, "email %q is already registered", email)
		case errors.Is(err, auth.ErrMissingFields):
			return types.UserProfile{}, apperr.Validation(op, "email, password and username are required")
		}
		return types.UserProfile{}, apperr.Transport(op, err)
	}

	// The profile document is written with the new session.
	if err := c.SignIn(ctx, email, password); err != nil {
		return types.UserProfile{}, err
	}

	data, err := docstore.Encode(profileDoc{
		AccountID: account.ID,
		Email:     account.Email,
		Username:  username,
		Role:      DefaultRole,
	})
	if err != nil {
		return types.UserProfile{}, apperr.Transport(op, err)
	}
	doc, err := c.store.CreateDocument(ctx, docstore.CollectionUsers, data)
	if err != nil {
		c.logger.Error("profile creation failed after account creation",
			"account_id", account.ID, "error", err)
		return types.UserProfile{}, apperr.Transport(op, err)
	}

	profile, err := decodeProfile(doc)
	if err != nil {
		return types.UserProfile{}, apperr.Transport(op, err)
	}
	c.logger.Info("user registered", "user_id", profile.ID, "account_id", account.ID)
	return profile, nil
}

// SignIn opens a session. Rejected credentials surface as AuthenticationRequired.
func (c *Context) SignIn(ctx context.Context, email, password string) error {
	const op = "signIn"
	if prev := c.Token(); prev != "" {
		if err := c.transport.DeleteSession(ctx, prev); err != nil {
			c.logger.Debug("dropping previous session failed", "error", err)
		}
		c.setToken("")
	}

	sess, err := c.transport.CreateSession(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return apperr.AuthenticationRequired(op, err)
		}
		return apperr.Transport(op, err)
	}
	c.setToken(sess.Token)
	c.logger.Debug("session created", "account_id", sess.AccountID)
	return nil
}

// SignOut deletes the remote session and forgets the token. Signing out
// without a session is a no-op.
func (c *Context) SignOut(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}
	c.setToken("")
	if err := c.transport.DeleteSession(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil
		}
		return apperr.Transport("signOut", err)
	}
	return nil
}

// Resolve maps the current session to a profile.
func (c *Context) Resolve(ctx context.Context) Result {
	token := c.Token()
	if token == "" {
		return Unauthenticated{Reason: ErrNoSession}
	}

	account, err := c.transport.GetCurrentAccount(ctx, token)
	if err != nil {
		c.logger.Debug("no current account", "error", err)
		return Unauthenticated{Reason: err}
	}

	docs, err := c.store.ListDocuments(ctx, docstore.CollectionUsers, docstore.Equal("accountId", account.ID))
	if err != nil {
		c.logger.Warn("profile lookup failed", "account_id", account.ID, "error", err)
		return Unauthenticated{Reason: err}
	}
	if len(docs) == 0 {
		c.logger.Warn("no user document found for account", "account_id", account.ID)
		return Unauthenticated{Reason: ErrNoProfile}
	}

	profile, err := decodeProfile(docs[0])
	if err != nil {
		return Unauthenticated{Reason: err}
	}
	return Authenticated{Profile: profile}
}

type profileKey struct{}

// WithProfile returns a context carrying an already resolved profile.
// CurrentUser and Capabilities answer from it without a remote lookup.
func WithProfile(ctx context.Context, profile types.UserProfile) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// ProfileFrom returns the profile stored by WithProfile.
func ProfileFrom(ctx context.Context) (types.UserProfile, bool) {
	profile, ok := ctx.Value(profileKey{}).(types.UserProfile)
	return profile, ok
}

// CurrentUser resolves the profile or fails with AuthenticationRequired.
func (c *Context) CurrentUser(ctx context.Context, op string) (types.UserProfile, error) {
	if profile, ok := ProfileFrom(ctx); ok {
		return profile, nil
	}
	switch r := c.Resolve(ctx).(type) {
	case Authenticated:
		return r.Profile, nil
	case Unauthenticated:
		return types.UserProfile{}, apperr.AuthenticationRequired(op, r.Reason)
	default:
		return types.UserProfile{}, apperr.AuthenticationRequired(op, nil)
	}
}

// Capabilities resolves the current user and its role capabilities.
func (c *Context) Capabilities(ctx context.Context, op string) (types.UserProfile, types.RoleCapabilities, error) {
	profile, err := c.CurrentUser(ctx, op)
	if err != nil {
		return types.UserProfile{}, types.RoleCapabilities{}, err
	}
	caps, err := rbac.CapabilitiesFor(profile.Role)
	if err != nil {
		c.logger.Error("profile has an unusable role", "user_id", profile.ID, "role", profile.Role)
		return types.UserProfile{}, types.RoleCapabilities{}, &apperr.Error{
			Kind:    apperr.KindPermissionDenied,
			Op:      op,
			Message: "user profile has no valid role",
			Err:     err,
		}
	}
	return profile, caps, nil
}

func decodeProfile(doc docstore.Document) (types.UserProfile, error) {
	var p profileDoc
	if err := doc.Decode(&p); err != nil {
		return types.UserProfile{}, err
	}
	return types.UserProfile{
		ID:        doc.ID,
		AccountID: p.AccountID,
		Email:     p.Email,
		Username:  p.Username,
		Role:      p.Role,
		CreatedAt: doc.CreatedAt,
	}, nil
}
