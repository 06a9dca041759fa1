package order

import (
	"context"

	"DecorStore/internal/catalog"
)

// Catalog is the product lookup orders and carts need.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}
