package store

import (
	"errors"

	"github.com/shoplist/core/internal/apperr"
	"github.com/shoplist/core/internal/docstore"
)

// translate maps a docstore failure to the caller-facing error kinds.
// Errors that already carry a kind pass through untouched.
func translate(op, entity, id string, err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound(op, "%s %q not found", entity, id)
	}
	if errors.Is(err, docstore.ErrUnauthorized) {
		return apperr.AuthenticationRequired(op, err)
	}
	return apperr.Transport(op, err)
}
