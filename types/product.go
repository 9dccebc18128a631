package types

import "time"

const (
	DefaultQuantity = 1
	DefaultUnit     = "unit"
)

// Product is an item on a shopping list.
type Product struct {
	ID     string `json:"id"`
	ListID string `json:"listId"`

	// UserID is the owner; it always equals the parent list's owner.
	UserID string `json:"userId"`

	Name string `json:"name"`

	// Quantity is at least 1.
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
	Bought   bool   `json:"bought"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductPatch carries the product fields to change. Nil fields are left untouched.
type ProductPatch struct {
	Name     *string `json:"name,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
	Unit     *string `json:"unit,omitempty"`
}

// Progress is the derived completion state of one list.
type Progress struct {
	Total  int `json:"total"`
	Bought int `json:"bought"`
}

// Remaining returns how many products are still to buy.
func (p Progress) Remaining() int {
	return p.Total - p.Bought
}

// Percent returns the bought share in the range [0, 100].
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Bought * 100 / p.Total
}
