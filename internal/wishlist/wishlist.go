// Package wishlist keeps per-user saved products.
package wishlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/catalog"
	"DecorStore/internal/filedb"
	"DecorStore/internal/order"
)

type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

type itemMapper struct{}

func (itemMapper) Columns() []string { return []string{"user_id", "product_id", "added_at"} }

func (itemMapper) ToRecord(it Item) filedb.Record {
	return filedb.Record{
		filedb.IDField: it.ID,
		"user_id":      it.UserID,
		"product_id":   it.ProductID,
		"added_at":     filedb.FormatTime(it.AddedAt),
	}
}

func (itemMapper) FromRecord(r filedb.Record) (Item, error) {
	added, err := filedb.ParseTime(r["added_at"])
	if err != nil {
		return Item{}, fmt.Errorf("added_at: %w", err)
	}
	return Item{ID: r.ID(), UserID: r["user_id"], ProductID: r["product_id"], AddedAt: added}, nil
}

type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Carts interface {
	AddToUserCart(ctx context.Context, actor auth.Identity, productID string, quantity int) (order.Cart, error)
}

type Service struct {
	items   *filedb.Collection[Item]
	catalog Catalog
	carts   Carts
	log     *zap.Logger
	now     func() time.Time

	// Unique makes a repeated add return the existing item.
	Unique bool
}

func NewService(db *filedb.DB, c Catalog, carts Carts, log *zap.Logger) (*Service, error) {
	t, err := db.Table(filedb.Wishlists)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		items:   filedb.NewCollection[Item](t, itemMapper{}),
		catalog: c,
		carts:   carts,
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *Service) List(ctx context.Context, actor auth.Identity) ([]Item, error) {
	return s.items.Find(ctx, func(it Item) bool { return it.UserID == actor.UserID })
}

// Add saves a product for the caller. It reports whether a new item was
// created; with Unique set a repeat returns the existing item and false.
func (s *Service) Add(ctx context.Context, actor auth.Identity, productID string) (Item, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Item{}, false, fmt.Errorf("%w: product_id required", apperr.ErrValidation)
	}
	if _, err := s.catalog.Get(ctx, productID); err != nil {
		return Item{}, false, err
	}

	var (
		out     Item
		created bool
	)
	err := s.items.Mutate(ctx, func(tx *filedb.CollectionTx[Item]) error {
		if s.Unique {
			all, err := tx.All()
			if err != nil {
				return err
			}
			for _, it := range all {
				if it.UserID == actor.UserID && it.ProductID == productID {
					out = it
					return nil
				}
			}
		}

		var err error
		out, err = tx.Insert(Item{UserID: actor.UserID, ProductID: productID, AddedAt: s.now()})
		created = err == nil
		return err
	})
	return out, created, err
}

// Remove deletes an item the caller owns.
func (s *Service) Remove(ctx context.Context, actor auth.Identity, itemID string) error {
	return s.items.Mutate(ctx, func(tx *filedb.CollectionTx[Item]) error {
		it, err := tx.Get(itemID)
		if err != nil {
			return err
		}
		if it.UserID != actor.UserID {
			return fmt.Errorf("%w: not the owner", apperr.ErrForbidden)
		}
		return tx.Delete(itemID)
	})
}

// MoveToCart adds the item's product to the caller's cart and then drops
// the wishlist item. The two tables are written one after the other.
func (s *Service) MoveToCart(ctx context.Context, actor auth.Identity, itemID string) (order.Cart, error) {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return order.Cart{}, err
	}
	if it.UserID != actor.UserID {
		return order.Cart{}, fmt.Errorf("%w: not the owner", apperr.ErrForbidden)
	}

	cart, err := s.carts.AddToUserCart(ctx, actor, it.ProductID, 1)
	if err != nil {
		return order.Cart{}, err
	}

	if err := s.items.Delete(ctx, itemID); err != nil {
		s.log.Warn("wishlist item moved but not removed",
			zap.String("item_id", itemID),
			zap.String("cart_id", cart.ID),
			zap.Error(err),
		)
		return order.Cart{}, err
	}
	return cart, nil
}
