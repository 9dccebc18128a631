package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shoplist/core/config"
	"github.com/shoplist/core/internal/auth"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/internal/logging"
	"github.com/shoplist/core/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []mq.DocumentChange
}

func (n *recordingNotifier) Notify(_ context.Context, change mq.DocumentChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

type testServer struct {
	router   http.Handler
	store    *docstore.MemoryStore
	notifier *recordingNotifier
	token    string
	account  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := docstore.NewMemoryStore()
	transport, err := auth.NewLocalTransport(mem, "server-test", auth.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	ctx := context.Background()
	account, err := transport.CreateAccount(ctx, "ana@example.com", "pw", "Ana")
	require.NoError(t, err)
	sess, err := transport.CreateSession(ctx, "ana@example.com", "pw")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	return &testServer{
		router: NewRouter(Deps{
			Store:    mem,
			Auth:     transport,
			Notifier: notifier,
			Logger:   logging.Discard(),
		}),
		store:    mem,
		notifier: notifier,
		token:    sess.Token,
		account:  account.ID,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDocumentRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/collections/lists/documents", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/collections/lists/documents", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCredentialCollectionsAreHidden(t *testing.T) {
	s := newTestServer(t)

	for _, collection := range []string{docstore.CollectionAccounts, docstore.CollectionSessions} {
		rec := s.do(t, http.MethodGet, "/collections/"+collection+"/documents", "", true)
		assert.Equal(t, http.StatusForbidden, rec.Code, collection)
	}
}

func TestDocumentLifecyclePublishesChanges(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/collections/lists/documents", `{"name":"Weekly Groceries","userId":"u1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created docstore.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = s.do(t, http.MethodGet, "/collections/lists/documents?userId=u1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Documents []docstore.Document `json:"documents"`
		Total     int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Total)

	rec = s.do(t, http.MethodGet, "/collections/lists/documents?userId=u2", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"documents":[],"total":0}`, rec.Body.String())

	rec = s.do(t, http.MethodPatch, "/collections/lists/documents/"+created.ID, `{"name":"Party"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/collections/lists/documents/"+created.ID, "", true)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/collections/lists/documents/"+created.ID, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/collections/lists/documents/missing", `{"name":"x"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, s.notifier.changes, 3)
	assert.Equal(t, mq.ActionCreated, s.notifier.changes[0].Action)
	assert.Equal(t, mq.ActionUpdated, s.notifier.changes[1].Action)
	assert.Equal(t, mq.ActionDeleted, s.notifier.changes[2].Action)
	for _, change := range s.notifier.changes {
		assert.Equal(t, "lists", change.Collection)
		assert.Equal(t, created.ID, change.ID)
		assert.Equal(t, s.account, change.AccountID)
	}
}

func TestProfileOwnershipEnforced(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/collections/users/documents", `{"accountId":"someone-else","username":"mallory","role":"admin"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, "/collections/users/documents", `{"username":"mallory","role":"admin"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, "/collections/users/documents", `{"accountId":"`+s.account+`","username":"ana","role":"owner"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/collections/users/documents", `{"accountId":"`+s.account+`","username":"ana","role":"viewer"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var profile docstore.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))

	rec = s.do(t, http.MethodPost, "/collections/users/documents", `{"accountId":"`+s.account+`","username":"ana2","role":"admin"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := "/collections/users/documents/" + profile.ID
	rec = s.do(t, http.MethodPatch, path, `{"role":"admin"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPatch, path, `{"username":"ana","accountId":"someone-else"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, `{"username":"ana.b"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated docstore.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "ana.b", updated.Data["username"])
	assert.Equal(t, "viewer", updated.Data["role"])
	assert.Equal(t, s.account, updated.Data["accountId"])

	other, err := s.store.CreateDocument(context.Background(), docstore.CollectionUsers, map[string]any{
		"accountId": "someone-else",
		"username":  "bob",
		"role":      "viewer",
	})
	require.NoError(t, err)
	rec = s.do(t, http.MethodPatch, "/collections/users/documents/"+other.ID, `{"username":"mallory"}`, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/collections/users/documents/"+other.ID, "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/collections/lists/documents", `{"name":`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/sessions", `nope`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/healthz", "", false)

	rec := s.do(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shoplist_http_requests_total{method="GET",path="/healthz",status="200"}`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/collections/lists/documents", nil)
	req.Header.Set("Origin", "http://localhost:19006")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthRoutesRateLimited(t *testing.T) {
	mem := docstore.NewMemoryStore()
	transport, err := auth.NewLocalTransport(mem, "server-test", auth.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	router := NewRouter(Deps{
		Store:  mem,
		Auth:   transport,
		Logger: logging.Discard(),
		HTTP:   config.HTTPConfig{AuthRateLimit: 0.001, AuthRateBurst: 1},
	})

	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/sessions", strings.NewReader(`{"email":"x@example.com","password":"pw"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
