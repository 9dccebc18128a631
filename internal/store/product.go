package store

import (
	"context"
	"time"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/types"
)

type productDoc struct {
	ListID    string `json:"listId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit"`
	Bought    bool   `json:"bought"`
	UpdatedAt string `json:"updatedAt"`
}

// ProductRepository handles persistence for products.
type ProductRepository struct {
	store docstore.Client
	users UserResolver
	now   func() time.Time
}

func NewProductRepository(store docstore.Client, users UserResolver) *ProductRepository {
	return &ProductRepository{store: store, users: users, now: time.Now}
}

// Add stores a new, not yet bought product on listID owned by the current user.
// A quantity below 1 means the default of 1.
func (r *ProductRepository) Add(ctx context.Context, listID, name string, quantity int) (types.Product, error) {
	const op = "products.Add"
	user, err := r.users.CurrentUser(ctx, op)
	if err != nil {
		return types.Product{}, err
	}
	if quantity < 1 {
		quantity = types.DefaultQuantity
	}

	data, err := docstore.Encode(productDoc{
		ListID:    listID,
		UserID:    user.ID,
		Name:      name,
		Quantity:  quantity,
		Unit:      types.DefaultUnit,
		Bought:    false,
		UpdatedAt: formatTime(r.now()),
	})
	if err != nil {
		return types.Product{}, apperr.Transport(op, err)
	}
	doc, err := r.store.CreateDocument(ctx, docstore.CollectionProducts, data)
	if err != nil {
		return types.Product{}, translate(op, "product", "", err)
	}
	return decodeProduct(op, doc)
}

// ListFor returns the current user's products on listID.
func (r *ProductRepository) ListFor(ctx context.Context, listID string) ([]types.Product, error) {
	const op = "products.ListFor"
	user, err := r.users.CurrentUser(ctx, op)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.ListDocuments(ctx, docstore.CollectionProducts,
		docstore.Equal("listId", listID),
		docstore.Equal("userId", user.ID),
	)
	if err != nil {
		return nil, translate(op, "product", "", err)
	}
	products := make([]types.Product, 0, len(docs))
	for _, doc := range docs {
		product, err := decodeProduct(op, doc)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

// Get fetches a product by id without an owner check.
func (r *ProductRepository) Get(ctx context.Context, id string) (types.Product, error) {
	const op = "products.Get"
	doc, err := r.store.GetDocument(ctx, docstore.CollectionProducts, id)
	if err != nil {
		return types.Product{}, translate(op, "product", id, err)
	}
	return decodeProduct(op, doc)
}

// SetBought writes the bought flag. Writing the same value again is harmless.
func (r *ProductRepository) SetBought(ctx context.Context, id string, bought bool) (types.Product, error) {
	return r.patch(ctx, "products.SetBought", id, map[string]any{"bought": bought})
}

// SetQuantity writes quantity as given; callers clamp it to at least 1.
func (r *ProductRepository) SetQuantity(ctx context.Context, id string, quantity int) (types.Product, error) {
	return r.patch(ctx, "products.SetQuantity", id, map[string]any{"quantity": quantity})
}

// Update applies the non-nil fields of patch.
func (r *ProductRepository) Update(ctx context.Context, id string, patch types.ProductPatch) (types.Product, error) {
	data := map[string]any{}
	if patch.Name != nil {
		data["name"] = *patch.Name
	}
	if patch.Quantity != nil {
		data["quantity"] = *patch.Quantity
	}
	if patch.Unit != nil {
		data["unit"] = *patch.Unit
	}
	return r.patch(ctx, "products.Update", id, data)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const op = "products.Delete"
	if err := r.store.DeleteDocument(ctx, docstore.CollectionProducts, id); err != nil {
		return translate(op, "product", id, err)
	}
	return nil
}

func (r *ProductRepository) patch(ctx context.Context, op, id string, data map[string]any) (types.Product, error) {
	data["updatedAt"] = formatTime(r.now())
	doc, err := r.store.UpdateDocument(ctx, docstore.CollectionProducts, id, data)
	if err != nil {
		return types.Product{}, translate(op, "product", id, err)
	}
	return decodeProduct(op, doc)
}

func decodeProduct(op string, doc docstore.Document) (types.Product, error) {
	var d productDoc
	if err := doc.Decode(&d); err != nil {
		return types.Product{}, apperr.Transport(op, err)
	}
	if d.Unit == "" {
		d.Unit = types.DefaultUnit
	}
	return types.Product{
		ID:        doc.ID,
		ListID:    d.ListID,
		UserID:    d.UserID,
		Name:      d.Name,
		Quantity:  d.Quantity,
		Unit:      d.Unit,
		Bought:    d.Bought,
		UpdatedAt: parseTime(d.UpdatedAt, doc.UpdatedAt),
	}, nil
}
