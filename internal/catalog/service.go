package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/filedb"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

var errAdminOnly = fmt.Errorf("%w: admin privileges required", apperr.ErrForbidden)

type Query struct {
	Q        string
	Category string
	Limit    int
	Offset   int
}

type Service struct {
	products *filedb.Collection[Product]
	images   *ImageStore
	log      *zap.Logger
	now      func() time.Time
}

func NewService(db *filedb.DB, images *ImageStore, log *zap.Logger) (*Service, error) {
	t, err := db.Table(filedb.Products)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		products: filedb.NewCollection[Product](t, productMapper{}),
		images:   images,
		log:      log,
		now:      time.Now,
	}, nil
}

// List filters by a case-insensitive substring of name or description and
// an exact category, then pages. Order is file order.
func (s *Service) List(ctx context.Context, q Query) ([]Product, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", apperr.ErrValidation)
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	needle := strings.ToLower(strings.TrimSpace(q.Q))
	category := strings.TrimSpace(q.Category)

	all, err := s.products.Find(ctx, func(p Product) bool {
		if category != "" && !strings.EqualFold(p.Category, category) {
			return false
		}
		if needle == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
	})
	if err != nil {
		return nil, err
	}

	if q.Offset >= len(all) {
		return []Product{}, nil
	}
	end := min(q.Offset+limit, len(all))
	return all[q.Offset:end], nil
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input) (Product, error) {
	if !actor.IsAdmin() {
		return Product{}, errAdminOnly
	}
	if in.Name == nil || (in.Price == nil && in.PriceCents == nil) {
		return Product{}, fmt.Errorf("%w: name and price are required", apperr.ErrValidation)
	}

	now := s.now()
	p := Product{CreatedBy: actor.UserID, CreatedAt: now, UpdatedAt: now, Images: []string{}}
	if err := in.apply(&p); err != nil {
		return Product{}, err
	}
	return s.products.Insert(ctx, p)
}

func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, in Input) (Product, error) {
	if !actor.IsAdmin() {
		return Product{}, errAdminOnly
	}
	return s.products.Update(ctx, id, func(p *Product) error {
		if err := in.apply(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		return nil
	})
}

// Delete removes the product and its uploaded images.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if s.images != nil {
		if err := s.images.RemoveAll(id); err != nil {
			s.log.Warn("remove product images", zap.String("product_id", id), zap.Error(err))
		}
	}
	return nil
}
