package store

import (
	"context"
	"time"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/types"
)

// UserResolver returns the signed-in profile or an AuthenticationRequired error.
type UserResolver interface {
	CurrentUser(ctx context.Context, op string) (types.UserProfile, error)
}

type listDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ListRepository handles persistence for shopping lists.
type ListRepository struct {
	store docstore.Client
	users UserResolver
	now   func() time.Time
}

func NewListRepository(store docstore.Client, users UserResolver) *ListRepository {
	return &ListRepository{store: store, users: users, now: time.Now}
}

// Create stores a new list owned by the current user.
func (r *ListRepository) Create(ctx context.Context, name, description string) (types.ShoppingList, error) {
	const op = "lists.Create"
	user, err := r.users.CurrentUser(ctx, op)
	if err != nil {
		return types.ShoppingList{}, err
	}

	now := formatTime(r.now())
	data, err := docstore.Encode(listDoc{
		Name:        name,
		Description: description,
		UserID:      user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return types.ShoppingList{}, apperr.Transport(op, err)
	}
	doc, err := r.store.CreateDocument(ctx, docstore.CollectionLists, data)
	if err != nil {
		return types.ShoppingList{}, translate(op, "list", "", err)
	}
	return decodeList(op, doc)
}

// List returns the lists owned by the current user in store order.
func (r *ListRepository) List(ctx context.Context) ([]types.ShoppingList, error) {
	const op = "lists.List"
	user, err := r.users.CurrentUser(ctx, op)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.ListDocuments(ctx, docstore.CollectionLists, docstore.Equal("userId", user.ID))
	if err != nil {
		return nil, translate(op, "list", "", err)
	}
	lists := make([]types.ShoppingList, 0, len(docs))
	for _, doc := range docs {
		list, err := decodeList(op, doc)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// Get fetches a list by id. The owner is not checked here.
func (r *ListRepository) Get(ctx context.Context, id string) (types.ShoppingList, error) {
	const op = "lists.Get"
	doc, err := r.store.GetDocument(ctx, docstore.CollectionLists, id)
	if err != nil {
		return types.ShoppingList{}, translate(op, "list", id, err)
	}
	return decodeList(op, doc)
}

// Update merges patch into the list and bumps updatedAt.
func (r *ListRepository) Update(ctx context.Context, id string, patch types.ListPatch) (types.ShoppingList, error) {
	const op = "lists.Update"
	data := map[string]any{"updatedAt": formatTime(r.now())}
	if patch.Name != nil {
		data["name"] = *patch.Name
	}
	if patch.Description != nil {
		data["description"] = *patch.Description
	}

	doc, err := r.store.UpdateDocument(ctx, docstore.CollectionLists, id, data)
	if err != nil {
		return types.ShoppingList{}, translate(op, "list", id, err)
	}
	return decodeList(op, doc)
}

// Delete removes the list document only. Its products are left in place.
func (r *ListRepository) Delete(ctx context.Context, id string) error {
	const op = "lists.Delete"
	if err := r.store.DeleteDocument(ctx, docstore.CollectionLists, id); err != nil {
		return translate(op, "list", id, err)
	}
	return nil
}

func decodeList(op string, doc docstore.Document) (types.ShoppingList, error) {
	var d listDoc
	if err := doc.Decode(&d); err != nil {
		return types.ShoppingList{}, apperr.Transport(op, err)
	}
	return types.ShoppingList{
		ID:          doc.ID,
		Name:        d.Name,
		Description: d.Description,
		UserID:      d.UserID,
		CreatedAt:   parseTime(d.CreatedAt, doc.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt, doc.UpdatedAt),
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fallback
	}
	return t
}
