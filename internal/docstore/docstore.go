// Package docstore is the typed contract of the remote document service
// and its in-process implementations.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collection names used by the application.
const (
	CollectionUsers    = "users"
	CollectionLists    = "lists"
	CollectionProducts = "products"
	CollectionAccounts = "accounts"
	CollectionSessions = "sessions"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrUnauthorized is returned by networked clients when the session is rejected.
var ErrUnauthorized = errors.New("session rejected by store")

// ErrInvalidCollection is returned for an empty or malformed collection name.
var ErrInvalidCollection = errors.New("invalid collection")

// Document is a schemaless record with a store-assigned id.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Decode unmarshals the document data into v.
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Filter is an equality term on a single data field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Equal builds an equality filter.
func Equal(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Client is the CRUD + query surface of the document store.
// Multiple filters passed to ListDocuments are combined with AND.
// Implementations do not retry.
type Client interface {
	CreateDocument(ctx context.Context, collection string, data map[string]any) (Document, error)
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	ListDocuments(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

// FilterValue renders a filter value the way every backend compares it:
// as the text form of the JSON scalar.
func FilterValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(typed)
	}
}

// Encode converts v into document data using its JSON field names.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidCollection reports whether name is usable as a collection name.
func ValidCollection(name string) error {
	if name == "" {
		return ErrInvalidCollection
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
		}
	}
	return nil
}
