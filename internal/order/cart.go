package order

import (
	"context"
	"fmt"
	"strings"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/filedb"
)

var errNotOwner = fmt.Errorf("%w: not the owner", apperr.ErrForbidden)

func (s *Service) CreateCart(ctx context.Context, actor auth.Identity, items []CartItem) (Cart, error) {
	c := Cart{UserID: actor.UserID, Items: []CartItem{}, UpdatedAt: s.now()}
	for _, it := range items {
		if err := s.checkCartItem(ctx, it); err != nil {
			return Cart{}, err
		}
		c.Items = mergeItem(c.Items, it)
	}
	return s.carts.Insert(ctx, c)
}

func (s *Service) GetCart(ctx context.Context, actor auth.Identity, id string) (Cart, error) {
	c, err := s.carts.Get(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	if !actor.Can(c.UserID) {
		return Cart{}, errNotOwner
	}
	return c, nil
}

func (s *Service) ListCarts(ctx context.Context, actor auth.Identity) ([]Cart, error) {
	return s.carts.Find(ctx, func(c Cart) bool { return c.UserID == actor.UserID })
}

// AddToCart adds quantity of a product, merging with an existing line.
func (s *Service) AddToCart(ctx context.Context, actor auth.Identity, cartID string, it CartItem) (Cart, error) {
	if err := s.checkCartItem(ctx, it); err != nil {
		return Cart{}, err
	}
	return s.carts.Update(ctx, cartID, func(c *Cart) error {
		if !actor.Can(c.UserID) {
			return errNotOwner
		}
		c.Items = mergeItem(c.Items, it)
		c.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, actor auth.Identity, cartID, productID string) (Cart, error) {
	return s.carts.Update(ctx, cartID, func(c *Cart) error {
		if !actor.Can(c.UserID) {
			return errNotOwner
		}
		for i, it := range c.Items {
			if it.ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				c.UpdatedAt = s.now()
				return nil
			}
		}
		return fmt.Errorf("%w: product %q is not in the cart", apperr.ErrNotFound, productID)
	})
}

func (s *Service) DeleteCart(ctx context.Context, actor auth.Identity, id string) error {
	return s.carts.Mutate(ctx, func(tx *filedb.CollectionTx[Cart]) error {
		c, err := tx.Get(id)
		if err != nil {
			return err
		}
		if !actor.Can(c.UserID) {
			return errNotOwner
		}
		return tx.Delete(id)
	})
}

// AddToUserCart puts one product into the caller's most recent cart,
// creating a cart when the caller has none.
func (s *Service) AddToUserCart(ctx context.Context, actor auth.Identity, productID string, quantity int) (Cart, error) {
	it := CartItem{ProductID: productID, Quantity: quantity}
	if err := s.checkCartItem(ctx, it); err != nil {
		return Cart{}, err
	}

	var out Cart
	err := s.carts.Mutate(ctx, func(tx *filedb.CollectionTx[Cart]) error {
		all, err := tx.All()
		if err != nil {
			return err
		}
		var mine *Cart
		for i := range all {
			if all[i].UserID == actor.UserID && (mine == nil || !all[i].UpdatedAt.Before(mine.UpdatedAt)) {
				mine = &all[i]
			}
		}

		if mine == nil {
			out, err = tx.Insert(Cart{UserID: actor.UserID, Items: []CartItem{it}, UpdatedAt: s.now()})
			return err
		}
		mine.Items = mergeItem(mine.Items, it)
		mine.UpdatedAt = s.now()
		out, err = tx.Put(mine.ID, *mine)
		return err
	})
	return out, err
}

func (s *Service) checkCartItem(ctx context.Context, it CartItem) error {
	if strings.TrimSpace(it.ProductID) == "" {
		return fmt.Errorf("%w: product_id is required", apperr.ErrValidation)
	}
	if it.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", apperr.ErrValidation)
	}
	_, err := s.catalog.Get(ctx, it.ProductID)
	return err
}

func mergeItem(items []CartItem, it CartItem) []CartItem {
	for i := range items {
		if items[i].ProductID == it.ProductID {
			items[i].Quantity += it.Quantity
			return items
		}
	}
	return append(items, it)
}
