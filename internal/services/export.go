package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/progress"
	"github.com/shoplist/core/internal/storage"
	"github.com/shoplist/core/types"
)

var ErrExportDisabled = errors.New("export storage is not configured")

// Export is the document written by ExportData.
type Export struct {
	ExportedAt time.Time    `json:"exportedAt"`
	User       ExportUser   `json:"user"`
	Lists      []ExportList `json:"lists"`
}

type ExportUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ExportList struct {
	List     types.ShoppingList `json:"list"`
	Products []types.Product    `json:"products"`
	Progress types.Progress     `json:"progress"`
}

// ExportData writes every list and product of the current user as JSON to the
// export sink and returns the object key.
func (f *Facade) ExportData(ctx context.Context) (string, error) {
	const op = "exportData"
	ctx, profile, caps, err := f.authorize(ctx, op)
	if err != nil {
		return "", err
	}
	if !caps.CanExportData {
		return "", apperr.PermissionDenied(op, "role %q cannot export data", profile.Role)
	}
	if f.exports == nil {
		return "", apperr.Transport(op, ErrExportDisabled)
	}

	lists, err := f.lists.List(ctx)
	if err != nil {
		return "", err
	}

	now := f.now().UTC()
	export := Export{
		ExportedAt: now,
		User:       ExportUser{ID: profile.ID, Username: profile.Username, Email: profile.Email},
		Lists:      make([]ExportList, 0, len(lists)),
	}
	for _, list := range lists {
		products, err := f.products.ListFor(ctx, list.ID)
		if err != nil {
			return "", err
		}
		export.Lists = append(export.Lists, ExportList{
			List:     list,
			Products: products,
			Progress: progress.Aggregate(products),
		})
	}

	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", apperr.Transport(op, err)
	}
	key := fmt.Sprintf("%s%d.json", exportPrefix(profile.ID), now.Unix())
	if err := f.exports.PutBytes(ctx, key, body, "application/json"); err != nil {
		return "", apperr.Transport(op, err)
	}

	f.logger.Info("data exported", "user_id", profile.ID, "key", key, "lists", len(lists))
	return key, nil
}

// ListExports returns the current user's exports, oldest first.
func (f *Facade) ListExports(ctx context.Context) ([]storage.ObjectInfo, error) {
	const op = "listExports"
	_, profile, _, err := f.authorize(ctx, op)
	if err != nil {
		return nil, err
	}
	if f.exports == nil {
		return nil, apperr.Transport(op, ErrExportDisabled)
	}
	objects, err := f.exports.List(ctx, exportPrefix(profile.ID))
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	return objects, nil
}

// ReadExport returns the body of one of the current user's exports.
func (f *Facade) ReadExport(ctx context.Context, key string) ([]byte, error) {
	const op = "readExport"
	if err := f.ownExport(ctx, op, key); err != nil {
		return nil, err
	}
	data, err := f.exports.ReadAll(ctx, key)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	return data, nil
}

// DeleteExport removes one of the current user's exports.
func (f *Facade) DeleteExport(ctx context.Context, key string) error {
	const op = "deleteExport"
	if err := f.ownExport(ctx, op, key); err != nil {
		return err
	}
	if err := f.exports.Delete(ctx, key); err != nil {
		return apperr.Transport(op, err)
	}
	f.logger.Info("export deleted", "key", key)
	return nil
}

// ownExport hides keys outside the current user's export prefix.
func (f *Facade) ownExport(ctx context.Context, op, key string) error {
	_, profile, _, err := f.authorize(ctx, op)
	if err != nil {
		return err
	}
	if f.exports == nil {
		return apperr.Transport(op, ErrExportDisabled)
	}
	prefix := exportPrefix(profile.ID)
	if !strings.HasPrefix(key, prefix) || strings.Contains(key[len(prefix):], "/") {
		return apperr.NotFound(op, "export %q not found", key)
	}
	return nil
}

func exportPrefix(userID string) string {
	return "exports/" + userID + "/"
}
