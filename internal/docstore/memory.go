package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process document store. Data is copied through JSON on
// every write and read so callers never share maps with the store, mirroring
// a remote round trip.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]map[string]*Document
	order map[string][]string
	now   func() time.Time
	fail  map[string]error
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]map[string]*Document),
		order: make(map[string][]string),
		now:   time.Now,
		fail:  make(map[string]error),
	}
}

// FailOn makes every subsequent call of the named operation ("create", "get",
// "list", "update", "delete") on collection return err. A nil err clears it.
func (m *MemoryStore) FailOn(op, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + collection
	if err == nil {
		delete(m.fail, key)
		return
	}
	m.fail[key] = err
}

func (m *MemoryStore) injected(op, collection string) error {
	return m.fail[op+":"+collection]
}

func (m *MemoryStore) CreateDocument(_ context.Context, collection string, data map[string]any) (Document, error) {
	if err := ValidCollection(collection); err != nil {
		return Document{}, err
	}
	cloned, err := cloneData(data)
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("create", collection); err != nil {
		return Document{}, err
	}

	now := m.now().UTC()
	doc := &Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       cloned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]*Document)
	}
	m.docs[collection][doc.ID] = doc
	m.order[collection] = append(m.order[collection], doc.ID)
	return copyDocument(doc)
}

func (m *MemoryStore) GetDocument(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("get", collection); err != nil {
		return Document{}, err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDocument(doc)
}

func (m *MemoryStore) ListDocuments(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidCollection(collection); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("list", collection); err != nil {
		return nil, err
	}

	out := make([]Document, 0)
	for _, id := range m.order[collection] {
		doc, ok := m.docs[collection][id]
		if !ok || !matches(doc, filters) {
			continue
		}
		copied, err := copyDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, collection, id string, patch map[string]any) (Document, error) {
	cloned, err := cloneData(patch)
	if err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("update", collection); err != nil {
		return Document{}, err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	for key, value := range cloned {
		doc.Data[key] = value
	}
	doc.UpdatedAt = m.now().UTC()
	return copyDocument(doc)
}

func (m *MemoryStore) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("delete", collection); err != nil {
		return err
	}
	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	ids := m.order[collection]
	for i, existing := range ids {
		if existing == id {
			m.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func matches(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := doc.Data[f.Field]
		if !ok || FilterValue(value) != FilterValue(f.Value) {
			return false
		}
	}
	return true
}

func cloneData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyDocument(doc *Document) (Document, error) {
	data, err := cloneData(doc.Data)
	if err != nil {
		return Document{}, err
	}
	out := *doc
	out.Data = data
	return out, nil
}
