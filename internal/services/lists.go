package services

import (
	"context"
	"strings"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/types"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentDeletes bounds the product deletes a cascade issues at once.
const maxConcurrentDeletes = 8

// CreateList creates a list owned by the current user.
func (f *Facade) CreateList(ctx context.Context, name, description string) (types.ShoppingList, error) {
	const op = "createList"
	name = strings.TrimSpace(name)
	if name == "" {
		return types.ShoppingList{}, apperr.Validation(op, "please enter a list name")
	}
	ctx, profile, caps, err := f.authorize(ctx, op)
	if err != nil {
		return types.ShoppingList{}, err
	}
	if !caps.CanCreateList {
		return types.ShoppingList{}, apperr.PermissionDenied(op, "role %q cannot create lists", profile.Role)
	}

	list, err := f.lists.Create(ctx, name, description)
	if err != nil {
		return types.ShoppingList{}, err
	}

	f.mu.Lock()
	f.snapshot.putList(list)
	f.snapshot.list(list.ID).loaded = true
	f.mu.Unlock()

	f.logger.Info("list created", "list_id", list.ID, "user_id", profile.ID)
	return list, nil
}

// GetLists returns the current user's lists. Order follows the store and is not guaranteed.
func (f *Facade) GetLists(ctx context.Context) ([]types.ShoppingList, error) {
	ctx, _, _, err := f.authorize(ctx, "getLists")
	if err != nil {
		return nil, err
	}
	lists, err := f.lists.List(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool, len(lists))
	for _, list := range lists {
		f.snapshot.putList(list)
		seen[list.ID] = true
	}
	for _, id := range append([]string(nil), f.snapshot.listOrder...) {
		if ls := f.snapshot.lists[id]; ls.list != nil && !seen[id] {
			f.snapshot.dropList(id)
		}
	}
	return lists, nil
}

// GetList returns one of the current user's lists. Lists owned by someone
// else are reported as not found.
func (f *Facade) GetList(ctx context.Context, id string) (types.ShoppingList, error) {
	const op = "getList"
	ctx, profile, _, err := f.authorize(ctx, op)
	if err != nil {
		return types.ShoppingList{}, err
	}
	list, err := f.ownedList(ctx, op, profile, id)
	if err != nil {
		return types.ShoppingList{}, err
	}

	f.mu.Lock()
	f.snapshot.putList(list)
	f.mu.Unlock()
	return list, nil
}

// RenameList changes the list name.
func (f *Facade) RenameList(ctx context.Context, id, name string) (types.ShoppingList, error) {
	name = strings.TrimSpace(name)
	return f.UpdateList(ctx, id, types.ListPatch{Name: &name})
}

// UpdateList changes the list name and/or description.
func (f *Facade) UpdateList(ctx context.Context, id string, patch types.ListPatch) (types.ShoppingList, error) {
	const op = "updateList"
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return types.ShoppingList{}, apperr.Validation(op, "please enter a list name")
		}
		patch.Name = &name
	}
	ctx, profile, caps, err := f.authorize(ctx, op)
	if err != nil {
		return types.ShoppingList{}, err
	}
	if !caps.CanEditList {
		return types.ShoppingList{}, apperr.PermissionDenied(op, "role %q cannot edit lists", profile.Role)
	}
	if _, err := f.ownedList(ctx, op, profile, id); err != nil {
		return types.ShoppingList{}, err
	}

	list, err := f.lists.Update(ctx, id, patch)
	if err != nil {
		return types.ShoppingList{}, err
	}

	f.mu.Lock()
	f.snapshot.putList(list)
	f.mu.Unlock()
	return list, nil
}

// DeleteList removes the list document. Its products are not deleted and
// stay readable by id; use DeleteListCascade to remove them as well.
func (f *Facade) DeleteList(ctx context.Context, id string) error {
	const op = "deleteList"
	ctx, profile, err := f.authorizeDelete(ctx, op, id)
	if err != nil {
		return err
	}
	if err := f.lists.Delete(ctx, id); err != nil {
		return err
	}

	f.mu.Lock()
	f.snapshot.dropList(id)
	f.mu.Unlock()

	f.logger.Info("list deleted", "list_id", id, "user_id", profile.ID)
	return nil
}

// DeleteListCascade deletes the list's products and then the list. The two
// steps are not atomic: if any product delete fails the list is kept and a
// *apperr.PartialDeleteError names the products left behind.
func (f *Facade) DeleteListCascade(ctx context.Context, id string) error {
	const op = "deleteListCascade"
	ctx, profile, err := f.authorizeDelete(ctx, op, id)
	if err != nil {
		return err
	}

	products, err := f.products.ListFor(ctx, id)
	if err != nil {
		return err
	}

	results := make([]error, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDeletes)
	for i, p := range products {
		g.Go(func() error {
			results[i] = f.products.Delete(gctx, p.ID)
			return nil
		})
	}
	_ = g.Wait()

	var deleted, orphaned []string
	var firstErr error
	for i, p := range products {
		if results[i] != nil && apperr.KindOf(results[i]) != apperr.KindNotFound {
			orphaned = append(orphaned, p.ID)
			if firstErr == nil {
				firstErr = results[i]
			}
			continue
		}
		deleted = append(deleted, p.ID)
	}

	f.mu.Lock()
	for _, pid := range deleted {
		f.snapshot.dropProduct(pid)
	}
	f.mu.Unlock()

	if len(orphaned) > 0 {
		f.logger.Warn("cascade delete left products behind",
			"list_id", id, "deleted", len(deleted), "orphaned", len(orphaned), "error", firstErr)
		return &apperr.PartialDeleteError{ListID: id, Deleted: deleted, Orphaned: orphaned, Err: firstErr}
	}

	if err := f.lists.Delete(ctx, id); err != nil {
		return err
	}

	f.mu.Lock()
	f.snapshot.dropList(id)
	f.mu.Unlock()

	f.logger.Info("list deleted with products", "list_id", id, "user_id", profile.ID, "products", len(deleted))
	return nil
}

func (f *Facade) authorizeDelete(ctx context.Context, op, id string) (context.Context, types.UserProfile, error) {
	ctx, profile, caps, err := f.authorize(ctx, op)
	if err != nil {
		return ctx, types.UserProfile{}, err
	}
	if !caps.CanDeleteList {
		return ctx, types.UserProfile{}, apperr.PermissionDenied(op, "role %q cannot delete lists", profile.Role)
	}
	if _, err := f.ownedList(ctx, op, profile, id); err != nil {
		return ctx, types.UserProfile{}, err
	}
	return ctx, profile, nil
}

// ownedList fetches a list and hides it unless the current user owns it.
func (f *Facade) ownedList(ctx context.Context, op string, profile types.UserProfile, id string) (types.ShoppingList, error) {
	list, err := f.lists.Get(ctx, id)
	if err != nil {
		return types.ShoppingList{}, err
	}
	if list.UserID != profile.ID {
		return types.ShoppingList{}, apperr.NotFound(op, "list %q not found", id)
	}
	return list, nil
}
