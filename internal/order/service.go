package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/filedb"
)

var (
	errNoItems         = fmt.Errorf("%w: order must contain at least one item", apperr.ErrValidation)
	errBadItem         = fmt.Errorf("%w: each item needs a product_id and a quantity of at least 1", apperr.ErrValidation)
	errDuplicateItem   = fmt.Errorf("%w: duplicate product_id", apperr.ErrValidation)
	errTotalOverflow   = fmt.Errorf("%w: total overflow", apperr.ErrValidation)
	errAlreadyCanceled = fmt.Errorf("%w: order is already cancelled", apperr.ErrValidation)
	errAdminOnly       = fmt.Errorf("%w: admin privileges required", apperr.ErrForbidden)
)

type Service struct {
	carts   *filedb.Collection[Cart]
	orders  *filedb.Collection[Order]
	catalog Catalog
	log     *zap.Logger
	now     func() time.Time
}

func NewService(db *filedb.DB, c Catalog, log *zap.Logger) (*Service, error) {
	carts, err := db.Table(filedb.Carts)
	if err != nil {
		return nil, err
	}
	orders, err := db.Table(filedb.Orders)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		carts:   filedb.NewCollection[Cart](carts, cartMapper{}),
		orders:  filedb.NewCollection[Order](orders, orderMapper{}),
		catalog: c,
		log:     log,
		now:     time.Now,
	}, nil
}

type CreateRequest struct {
	CartID          string     `json:"cart_id"`
	Items           []CartItem `json:"items"`
	ShippingAddress string     `json:"shipping_address"`
}

// Create places an order from a cart the caller owns or from inline items.
// A cart id wins when both are given. Prices are taken from the catalog.
func (s *Service) Create(ctx context.Context, actor auth.Identity, req CreateRequest) (Order, error) {
	items := req.Items
	if req.CartID != "" {
		c, err := s.GetCart(ctx, actor, req.CartID)
		if err != nil {
			return Order{}, err
		}
		items = c.Items
	}
	if len(items) == 0 {
		return Order{}, errNoItems
	}

	lines, total, err := s.priceItems(ctx, items)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	o, err := s.orders.Insert(ctx, Order{
		UserID:          actor.UserID,
		Items:           lines,
		TotalCents:      total,
		Status:          StatusPlaced,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Order{}, err
	}

	s.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int64("total_cents", o.TotalCents),
	)
	return o, nil
}

func (s *Service) priceItems(ctx context.Context, items []CartItem) ([]Item, int64, error) {
	seen := make(map[string]struct{}, len(items))
	lines := make([]Item, 0, len(items))
	var total int64

	for _, it := range items {
		pid := strings.TrimSpace(it.ProductID)
		if it.Quantity <= 0 || pid == "" {
			return nil, 0, errBadItem
		}
		if _, dup := seen[pid]; dup {
			return nil, 0, errDuplicateItem
		}
		seen[pid] = struct{}{}

		p, err := s.catalog.Get(ctx, pid)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, 0, fmt.Errorf("%w: invalid product_id %q", apperr.ErrValidation, pid)
			}
			return nil, 0, err
		}

		if p.PriceCents > 0 && int64(it.Quantity) > math.MaxInt64/p.PriceCents {
			return nil, 0, errTotalOverflow
		}
		line := p.PriceCents * int64(it.Quantity)
		if total > math.MaxInt64-line {
			return nil, 0, errTotalOverflow
		}
		total += line

		lines = append(lines, Item{
			ProductID:      pid,
			Title:          p.Name,
			UnitPriceCents: p.PriceCents,
			Quantity:       it.Quantity,
		})
	}

	return lines, total, nil
}

// List returns the caller's orders. Admins see every order.
func (s *Service) List(ctx context.Context, actor auth.Identity) ([]Order, error) {
	return s.orders.Find(ctx, func(o Order) bool {
		return actor.IsAdmin() || o.UserID == actor.UserID
	})
}

func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.Can(o.UserID) {
		return Order{}, errNotOwner
	}
	return o, nil
}

// SetStatus moves an order to any valid status. Admin only; owners use
// Cancel.
func (s *Service) SetStatus(ctx context.Context, actor auth.Identity, id string, status Status) (Order, error) {
	if !actor.IsAdmin() {
		return Order{}, errAdminOnly
	}
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, status)
	}
	return s.orders.Update(ctx, id, func(o *Order) error {
		o.Status = status
		o.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, actor auth.Identity, id string) (Order, error) {
	return s.orders.Update(ctx, id, func(o *Order) error {
		if !actor.Can(o.UserID) {
			return errNotOwner
		}
		if o.Status == StatusCancelled {
			return errAlreadyCanceled
		}
		o.Status = StatusCancelled
		o.UpdatedAt = s.now()
		return nil
	})
}
