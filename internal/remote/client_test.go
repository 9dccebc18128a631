package remote_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/auth"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/internal/logging"
	"github.com/shoplist/core/internal/remote"
	"github.com/shoplist/core/internal/server"
	"github.com/shoplist/core/internal/services"
	"github.com/shoplist/core/internal/session"
	"github.com/shoplist/core/internal/store"
	"github.com/shoplist/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*httptest.Server, *docstore.MemoryStore) {
	t.Helper()
	mem := docstore.NewMemoryStore()
	transport, err := auth.NewLocalTransport(mem, "remote-test", auth.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Store:  mem,
		Auth:   transport,
		Logger: logging.Discard(),
	}))
	t.Cleanup(srv.Close)
	return srv, mem
}

func TestAuthRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	client := remote.New(srv.URL)
	ctx := context.Background()

	account, err := client.CreateAccount(ctx, "Ana@Example.com", "pw", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", account.Email)

	_, err = client.CreateAccount(ctx, "ana@example.com", "pw", "Ana")
	require.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = client.CreateAccount(ctx, "", "pw", "Ana")
	require.ErrorIs(t, err, auth.ErrMissingFields)

	_, err = client.CreateSession(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	sess, err := client.CreateSession(ctx, "ana@example.com", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	current, err := client.GetCurrentAccount(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, current.ID)

	require.NoError(t, client.DeleteSession(ctx, sess.Token))
	_, err = client.GetCurrentAccount(ctx, sess.Token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	require.ErrorIs(t, client.DeleteSession(ctx, sess.Token), auth.ErrInvalidToken)
}

func TestDocumentRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	client := remote.New(srv.URL)
	ctx := context.Background()

	_, err := client.CreateAccount(ctx, "bo@example.com", "pw", "Bo")
	require.NoError(t, err)
	sess, err := client.CreateSession(ctx, "bo@example.com", "pw")
	require.NoError(t, err)

	_, err = client.ListDocuments(ctx, docstore.CollectionLists)
	require.ErrorIs(t, err, docstore.ErrUnauthorized)

	client.SetTokenSource(func() string { return sess.Token })

	created, err := client.CreateDocument(ctx, docstore.CollectionProducts, map[string]any{
		"listId": "l1", "name": "Rice", "quantity": 2, "bought": false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = client.CreateDocument(ctx, docstore.CollectionProducts, map[string]any{
		"listId": "l2", "name": "Milk", "quantity": 1, "bought": true,
	})
	require.NoError(t, err)

	docs, err := client.ListDocuments(ctx, docstore.CollectionProducts, docstore.Equal("listId", "l1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Rice", docs[0].Data["name"])

	docs, err = client.ListDocuments(ctx, docstore.CollectionProducts, docstore.Equal("bought", true))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Milk", docs[0].Data["name"])

	updated, err := client.UpdateDocument(ctx, docstore.CollectionProducts, created.ID, map[string]any{"bought": true})
	require.NoError(t, err)
	assert.Equal(t, true, updated.Data["bought"])
	assert.Equal(t, "Rice", updated.Data["name"])

	got, err := client.GetDocument(ctx, docstore.CollectionProducts, created.ID)
	require.NoError(t, err)
	assert.Equal(t, true, got.Data["bought"])

	require.NoError(t, client.DeleteDocument(ctx, docstore.CollectionProducts, created.ID))
	_, err = client.GetDocument(ctx, docstore.CollectionProducts, created.ID)
	require.ErrorIs(t, err, docstore.ErrNotFound)
	require.ErrorIs(t, client.DeleteDocument(ctx, docstore.CollectionProducts, created.ID), docstore.ErrNotFound)

	_, err = client.ListDocuments(ctx, "bad collection!")
	require.ErrorIs(t, err, docstore.ErrInvalidCollection)
}

func TestFacadeOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	client := remote.New(srv.URL)
	sc := session.New(client, client, logging.Discard())
	client.SetTokenSource(sc.Token)

	facade := services.NewFacade(sc,
		store.NewListRepository(client, sc),
		store.NewProductRepository(client, sc),
		services.WithLogger(logging.Discard()),
	)
	ctx := context.Background()

	profile, err := facade.SignUp(ctx, "cy@example.com", "pw", "cy")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, profile.Role)

	list, err := facade.CreateList(ctx, "Weekly Groceries", "")
	require.NoError(t, err)
	rice, err := facade.AddProduct(ctx, list.ID, "Rice", 2)
	require.NoError(t, err)
	_, err = facade.AddProduct(ctx, list.ID, "Milk", 0)
	require.NoError(t, err)

	_, err = facade.ToggleBought(ctx, rice.ID, true)
	require.NoError(t, err)

	fresh := services.NewFacade(sc,
		store.NewListRepository(client, sc),
		store.NewProductRepository(client, sc),
		services.WithLogger(logging.Discard()),
	)
	progress, err := fresh.GetProgress(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Progress{Total: 2, Bought: 1}, progress)

	require.NoError(t, facade.SignOut(ctx))
	_, err = fresh.GetLists(ctx)
	require.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
}
