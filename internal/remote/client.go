// Package remote talks to a shoplist server over HTTP. Client implements
// both auth.Transport and docstore.Client so the session and repository
// layers run unchanged against a remote store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shoplist/core/internal/auth"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/types"
)

const defaultTimeout = 15 * time.Second

// StatusError is an unexpected HTTP response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the shoplist server.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.RWMutex
	tokenSource func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New constructs a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource sets the function consulted for the bearer token on
// document requests, typically (*session.Context).Token.
func (c *Client) SetTokenSource(source func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = source
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokenSource == nil {
		return ""
	}
	return c.tokenSource()
}

var (
	_ auth.Transport  = (*Client)(nil)
	_ docstore.Client = (*Client)(nil)
)

func (c *Client) CreateAccount(ctx context.Context, email, password, name string) (types.Account, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	var account types.Account
	err := c.do(ctx, http.MethodPost, "/auth/accounts", "", body, &account)
	if err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest:
			return types.Account{}, auth.ErrMissingFields
		case http.StatusConflict:
			return types.Account{}, auth.ErrEmailTaken
		}
		return types.Account{}, err
	}
	return account, nil
}

func (c *Client) CreateSession(ctx context.Context, email, password string) (types.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var sess types.Session
	if err := c.do(ctx, http.MethodPost, "/auth/sessions", "", body, &sess); err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return types.Session{}, auth.ErrInvalidCredentials
		}
		return types.Session{}, err
	}
	return sess, nil
}

func (c *Client) GetCurrentAccount(ctx context.Context, token string) (types.Account, error) {
	var account types.Account
	if err := c.do(ctx, http.MethodGet, "/auth/account", token, nil, &account); err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return types.Account{}, auth.ErrInvalidToken
		}
		return types.Account{}, err
	}
	return account, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodDelete, "/auth/sessions/current", token, nil, nil); err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return auth.ErrInvalidToken
		}
		return err
	}
	return nil
}

func (c *Client) CreateDocument(ctx context.Context, collection string, data map[string]any) (docstore.Document, error) {
	var doc docstore.Document
	err := c.do(ctx, http.MethodPost, documentsPath(collection), c.token(), data, &doc)
	return doc, mapDocumentError(err)
}

func (c *Client) GetDocument(ctx context.Context, collection, id string) (docstore.Document, error) {
	var doc docstore.Document
	err := c.do(ctx, http.MethodGet, documentPath(collection, id), c.token(), nil, &doc)
	return doc, mapDocumentError(err)
}

func (c *Client) ListDocuments(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	path := documentsPath(collection)
	if len(filters) > 0 {
		query := url.Values{}
		for _, f := range filters {
			query.Add(f.Field, docstore.FilterValue(f.Value))
		}
		path += "?" + query.Encode()
	}

	var resp struct {
		Documents []docstore.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, path, c.token(), nil, &resp); err != nil {
		return nil, mapDocumentError(err)
	}
	return resp.Documents, nil
}

func (c *Client) UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) (docstore.Document, error) {
	var doc docstore.Document
	err := c.do(ctx, http.MethodPatch, documentPath(collection, id), c.token(), patch, &doc)
	return doc, mapDocumentError(err)
}

func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	return mapDocumentError(c.do(ctx, http.MethodDelete, documentPath(collection, id), c.token(), nil, nil))
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func mapDocumentError(err error) error {
	if err == nil {
		return nil
	}
	switch statusOf(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", docstore.ErrInvalidCollection, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", docstore.ErrUnauthorized, err)
	}
	return err
}

func documentsPath(collection string) string {
	return "/collections/" + url.PathEscape(collection) + "/documents"
}

func documentPath(collection, id string) string {
	return documentsPath(collection) + "/" + url.PathEscape(id)
}
