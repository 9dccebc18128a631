package types

import "time"

// ShoppingList is a named list owned by exactly one user.
type ShoppingList struct {
	// ID is the store-assigned id of the list document.
	ID string `json:"id"`

	// Name is the non-empty title of the list.
	Name string `json:"name"`

	// Description is optional free text.
	Description string `json:"description"`

	// UserID is the owning profile id. Immutable after creation.
	UserID string `json:"userId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListPatch carries the list fields to change. Nil fields are left untouched.
type ListPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
