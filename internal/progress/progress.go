// Package progress derives list completion statistics from products.
package progress

import "github.com/shoplist/core/types"

// Aggregate counts products and how many of them are bought.
func Aggregate(products []types.Product) types.Progress {
	p := types.Progress{Total: len(products)}
	for _, product := range products {
		if product.Bought {
			p.Bought++
		}
	}
	return p
}
