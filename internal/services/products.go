package services

import (
	"context"
	"strings"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/types"
)

// AddProduct adds a product to one of the current user's lists. A quantity
// of 0 means the default of 1.
func (f *Facade) AddProduct(ctx context.Context, listID, name string, quantity int) (types.Product, error) {
	const op = "addProduct"
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Product{}, apperr.Validation(op, "please enter a product name")
	}
	if quantity < 0 {
		return types.Product{}, apperr.Validation(op, "quantity must be at least 1")
	}
	if quantity == 0 {
		quantity = types.DefaultQuantity
	}
	ctx, profile, err := f.authorizeEdit(ctx, op)
	if err != nil {
		return types.Product{}, err
	}
	if _, err := f.ownedList(ctx, op, profile, listID); err != nil {
		return types.Product{}, err
	}

	product, err := f.products.Add(ctx, listID, name, quantity)
	if err != nil {
		return types.Product{}, err
	}

	f.mu.Lock()
	f.snapshot.putProduct(product)
	f.snapshot.states[product.ID] = EntityState{Status: StatusClean}
	f.mu.Unlock()
	return product, nil
}

// LoadProducts fetches the list's products and replaces the snapshot for it.
func (f *Facade) LoadProducts(ctx context.Context, listID string) ([]types.Product, error) {
	ctx, _, _, err := f.authorize(ctx, "loadProducts")
	if err != nil {
		return nil, err
	}
	products, err := f.products.ListFor(ctx, listID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.snapshot.replaceProducts(listID, products)
	f.mu.Unlock()
	return products, nil
}

// Products returns the snapshot of a list's products, including optimistic values.
func (f *Facade) Products(listID string) []types.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.productsOf(listID)
}

// EntityState returns the sync state of a product in the snapshot.
func (f *Facade) EntityState(productID string) (EntityState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.snapshot.states[productID]
	return state, ok
}

// GetProgress returns the list's progress folded over the snapshot,
// fetching the products first if the list was never loaded.
func (f *Facade) GetProgress(ctx context.Context, listID string) (types.Progress, error) {
	f.mu.Lock()
	ls, ok := f.snapshot.lists[listID]
	if ok && ls.loaded {
		p := ls.progress
		f.mu.Unlock()
		return p, nil
	}
	f.mu.Unlock()

	if _, err := f.LoadProducts(ctx, listID); err != nil {
		return types.Progress{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.lists[listID].progress, nil
}

// ToggleBought sets the bought flag optimistically.
func (f *Facade) ToggleBought(ctx context.Context, productID string, bought bool) (types.Product, error) {
	return f.optimistic(ctx, "toggleBought", productID, f.togglePolicy,
		func(p *types.Product) { p.Bought = bought },
		func(ctx context.Context) (types.Product, error) {
			return f.products.SetBought(ctx, productID, bought)
		})
}

// SetQuantity sets the quantity optimistically. Quantities below 1 are rejected.
func (f *Facade) SetQuantity(ctx context.Context, productID string, quantity int) (types.Product, error) {
	const op = "setQuantity"
	if quantity < 1 {
		return types.Product{}, apperr.Validation(op, "quantity must be at least 1")
	}
	return f.optimistic(ctx, op, productID, f.quantityPolicy,
		func(p *types.Product) { p.Quantity = quantity },
		func(ctx context.Context) (types.Product, error) {
			return f.products.SetQuantity(ctx, productID, quantity)
		})
}

// AdjustQuantity changes the quantity by delta, never going below 1.
func (f *Facade) AdjustQuantity(ctx context.Context, productID string, delta int) (types.Product, error) {
	const op = "adjustQuantity"
	ctx, profile, err := f.authorizeEdit(ctx, op)
	if err != nil {
		return types.Product{}, err
	}
	current, err := f.ownedProduct(ctx, op, profile, productID)
	if err != nil {
		return types.Product{}, err
	}
	return f.SetQuantity(ctx, productID, max(1, current.Quantity+delta))
}

// UpdateProduct patches name, quantity and unit. It waits for the store
// before touching the snapshot.
func (f *Facade) UpdateProduct(ctx context.Context, productID string, patch types.ProductPatch) (types.Product, error) {
	const op = "updateProduct"
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.Product{}, apperr.Validation(op, "please enter a product name")
		}
		patch.Name = &name
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return types.Product{}, apperr.Validation(op, "quantity must be at least 1")
	}
	if patch.Unit != nil {
		unit := strings.TrimSpace(*patch.Unit)
		if unit == "" {
			return types.Product{}, apperr.Validation(op, "unit must not be empty")
		}
		patch.Unit = &unit
	}
	ctx, profile, err := f.authorizeEdit(ctx, op)
	if err != nil {
		return types.Product{}, err
	}
	if _, err := f.ownedProduct(ctx, op, profile, productID); err != nil {
		return types.Product{}, err
	}

	product, err := f.products.Update(ctx, productID, patch)
	if err != nil {
		return types.Product{}, err
	}

	f.mu.Lock()
	f.snapshot.putProduct(product)
	f.snapshot.states[productID] = EntityState{Status: StatusClean}
	f.mu.Unlock()
	return product, nil
}

// DeleteProduct removes a product and drops it from the snapshot.
func (f *Facade) DeleteProduct(ctx context.Context, productID string) error {
	const op = "deleteProduct"
	ctx, profile, err := f.authorizeEdit(ctx, op)
	if err != nil {
		return err
	}
	if _, err := f.ownedProduct(ctx, op, profile, productID); err != nil {
		return err
	}
	if err := f.products.Delete(ctx, productID); err != nil {
		return err
	}

	f.mu.Lock()
	f.snapshot.dropProduct(productID)
	f.mu.Unlock()
	return nil
}

// optimistic applies mutate to the snapshot, issues the remote write and
// settles the product's EntityState. On failure the policy decides whether
// the snapshot is rolled back; the error is returned either way.
func (f *Facade) optimistic(
	ctx context.Context,
	op, productID string,
	policy FailurePolicy,
	mutate func(*types.Product),
	write func(context.Context) (types.Product, error),
) (types.Product, error) {
	ctx, profile, err := f.authorizeEdit(ctx, op)
	if err != nil {
		return types.Product{}, err
	}
	if _, err := f.ownedProduct(ctx, op, profile, productID); err != nil {
		return types.Product{}, err
	}

	f.mu.Lock()
	before, ok := f.snapshot.product(productID)
	if !ok {
		f.mu.Unlock()
		return types.Product{}, apperr.NotFound(op, "product %q not found", productID)
	}
	pending := before
	mutate(&pending)
	f.snapshot.putProduct(pending)
	f.snapshot.states[productID] = EntityState{Status: StatusPending, Pending: pending}
	f.mu.Unlock()

	product, err := write(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, still := f.snapshot.product(productID); !still {
		// The product left the snapshot (reset or delete) while the write was in flight.
		return product, err
	}
	if err != nil {
		f.snapshot.states[productID] = EntityState{Status: StatusFailed, Rollback: before, Err: err, Policy: policy}
		if policy == Rollback {
			f.snapshot.putProduct(before)
		}
		f.logger.Warn("optimistic update rejected",
			"op", op, "product_id", productID, "policy", policy.String(), "error", err)
		return types.Product{}, err
	}
	f.snapshot.putProduct(product)
	f.snapshot.states[productID] = EntityState{Status: StatusClean}
	return product, nil
}

func (f *Facade) authorizeEdit(ctx context.Context, op string) (context.Context, types.UserProfile, error) {
	ctx, profile, caps, err := f.authorize(ctx, op)
	if err != nil {
		return ctx, types.UserProfile{}, err
	}
	if !caps.CanEditList {
		return ctx, types.UserProfile{}, apperr.PermissionDenied(op, "role %q cannot edit lists", profile.Role)
	}
	return ctx, profile, nil
}

// ownedProduct returns the product from the snapshot, fetching and owner
// checking it when the snapshot does not hold it yet.
func (f *Facade) ownedProduct(ctx context.Context, op string, profile types.UserProfile, productID string) (types.Product, error) {
	f.mu.Lock()
	p, ok := f.snapshot.product(productID)
	f.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := f.products.Get(ctx, productID)
	if err != nil {
		return types.Product{}, err
	}
	if p.UserID != profile.ID {
		return types.Product{}, apperr.NotFound(op, "product %q not found", productID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.snapshot.product(productID); ok {
		return existing, nil
	}
	f.snapshot.putProduct(p)
	f.snapshot.states[productID] = EntityState{Status: StatusClean}
	return p, nil
}
