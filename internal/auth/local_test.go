package auth

import (
	"context"
	"testing"
	"time"

	"github.com/shoplist/core/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTransport(t *testing.T, opts ...LocalOption) (*LocalTransport, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	opts = append([]LocalOption{WithBcryptCost(bcrypt.MinCost)}, opts...)
	transport, err := NewLocalTransport(store, "test-secret", opts...)
	require.NoError(t, err)
	return transport, store
}

func TestNewLocalTransportRequiresSecret(t *testing.T) {
	_, err := NewLocalTransport(docstore.NewMemoryStore(), "  ")
	require.Error(t, err)
}

func TestAccountSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	transport, _ := newTestTransport(t)

	account, err := transport.CreateAccount(ctx, " Ana@Example.com ", "hunter22", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", account.Email)
	assert.NotEmpty(t, account.ID)

	sess, err := transport.CreateSession(ctx, "ana@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, account.ID, sess.AccountID)
	assert.NotEmpty(t, sess.Token)

	current, err := transport.GetCurrentAccount(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, account, current)

	require.NoError(t, transport.DeleteSession(ctx, sess.Token))

	_, err = transport.GetCurrentAccount(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateAccountRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	transport, _ := newTestTransport(t)

	_, err := transport.CreateAccount(ctx, "bo@example.com", "pw", "Bo")
	require.NoError(t, err)

	_, err = transport.CreateAccount(ctx, "BO@example.com", "pw2", "Bo2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateAccountRequiresFields(t *testing.T) {
	transport, _ := newTestTransport(t)
	_, err := transport.CreateAccount(context.Background(), "x@example.com", "", "X")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCreateSessionWrongPassword(t *testing.T) {
	ctx := context.Background()
	transport, _ := newTestTransport(t)

	_, err := transport.CreateAccount(ctx, "cy@example.com", "right", "Cy")
	require.NoError(t, err)

	_, err = transport.CreateSession(ctx, "cy@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = transport.CreateSession(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-48 * time.Hour)
	transport, _ := newTestTransport(t, WithClock(func() time.Time { return past }), WithTokenTTL(time.Hour))

	_, err := transport.CreateAccount(ctx, "di@example.com", "pw", "Di")
	require.NoError(t, err)
	sess, err := transport.CreateSession(ctx, "di@example.com", "pw")
	require.NoError(t, err)

	_, err = transport.GetCurrentAccount(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	ctx := context.Background()
	transport, store := newTestTransport(t)
	other, err := NewLocalTransport(store, "other-secret", WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	_, err = transport.CreateAccount(ctx, "ed@example.com", "pw", "Ed")
	require.NoError(t, err)
	sess, err := transport.CreateSession(ctx, "ed@example.com", "pw")
	require.NoError(t, err)

	_, err = other.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	accountID, err := transport.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.AccountID, accountID)
}
