// Package review implements product ratings, their summary and the shop's
// public responses.
package review

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/catalog"
	"DecorStore/internal/filedb"
)

const (
	minRating = 1
	maxRating = 5
)

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`

	ResponseBody      string     `json:"response_body,omitempty"`
	ResponseAuthorID  string     `json:"response_author_id,omitempty"`
	ResponseCreatedAt *time.Time `json:"response_created_at,omitempty"`
	ResponseUpdatedAt *time.Time `json:"response_updated_at,omitempty"`
}

func (r Review) hasResponse() bool { return r.ResponseBody != "" }

type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

type reviewMapper struct{}

func (reviewMapper) Columns() []string {
	return []string{
		"product_id", "user_id", "rating", "body", "created_at",
		"response_body", "response_author_id", "response_created_at", "response_updated_at",
	}
}

func (reviewMapper) ToRecord(r Review) filedb.Record {
	return filedb.Record{
		filedb.IDField:        r.ID,
		"product_id":          r.ProductID,
		"user_id":             r.UserID,
		"rating":              filedb.FormatInt(r.Rating),
		"body":                r.Body,
		"created_at":          filedb.FormatTime(r.CreatedAt),
		"response_body":       r.ResponseBody,
		"response_author_id":  r.ResponseAuthorID,
		"response_created_at": formatOptTime(r.ResponseCreatedAt),
		"response_updated_at": formatOptTime(r.ResponseUpdatedAt),
	}
}

func (reviewMapper) FromRecord(rec filedb.Record) (Review, error) {
	rating, err := filedb.ParseInt(rec["rating"])
	if err != nil {
		return Review{}, err
	}
	created, err := filedb.ParseTime(rec["created_at"])
	if err != nil {
		return Review{}, err
	}
	respCreated, err := parseOptTime(rec["response_created_at"])
	if err != nil {
		return Review{}, err
	}
	respUpdated, err := parseOptTime(rec["response_updated_at"])
	if err != nil {
		return Review{}, err
	}
	return Review{
		ID:                rec.ID(),
		ProductID:         rec["product_id"],
		UserID:            rec["user_id"],
		Rating:            rating,
		Body:              rec["body"],
		CreatedAt:         created,
		ResponseBody:      rec["response_body"],
		ResponseAuthorID:  rec["response_author_id"],
		ResponseCreatedAt: respCreated,
		ResponseUpdatedAt: respUpdated,
	}, nil
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return filedb.FormatTime(*t)
}

func parseOptTime(s string) (*time.Time, error) {
	t, err := filedb.ParseTime(s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Service struct {
	reviews *filedb.Collection[Review]
	catalog Catalog
	log     *zap.Logger
	now     func() time.Time

	// OnePerUser rejects a second review of a product by the same user.
	OnePerUser bool
}

func NewService(db *filedb.DB, c Catalog, log *zap.Logger) (*Service, error) {
	t, err := db.Table(filedb.Reviews)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		reviews: filedb.NewCollection[Review](t, reviewMapper{}),
		catalog: c,
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, productID string, rating int, body string) (Review, error) {
	if rating < minRating || rating > maxRating {
		return Review{}, fmt.Errorf("%w: rating must be between %d and %d", apperr.ErrValidation, minRating, maxRating)
	}
	if _, err := s.catalog.Get(ctx, productID); err != nil {
		return Review{}, err
	}

	var out Review
	err := s.reviews.Mutate(ctx, func(tx *filedb.CollectionTx[Review]) error {
		if s.OnePerUser {
			all, err := tx.All()
			if err != nil {
				return err
			}
			for _, r := range all {
				if r.ProductID == productID && r.UserID == actor.UserID {
					return fmt.Errorf("%w: product already reviewed by this user", apperr.ErrConflict)
				}
			}
		}

		var err error
		out, err = tx.Insert(Review{
			ProductID: productID,
			UserID:    actor.UserID,
			Rating:    rating,
			Body:      strings.TrimSpace(body),
			CreatedAt: s.now(),
		})
		return err
	})
	return out, err
}

func (s *Service) List(ctx context.Context, productID string) ([]Review, error) {
	return s.reviews.Find(ctx, func(r Review) bool { return r.ProductID == productID })
}

// Summary is the review count and mean rating rounded to two decimals.
// A product without reviews has {0, 0}.
func (s *Service) Summary(ctx context.Context, productID string) (Summary, error) {
	rs, err := s.List(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(rs), nil
}

func summarize(rs []Review) Summary {
	if len(rs) == 0 {
		return Summary{}
	}
	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(rs))
	return Summary{Count: len(rs), Average: math.Round(avg*100) / 100}
}

// Delete removes the caller's own review.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, productID, reviewID string) error {
	return s.reviews.Mutate(ctx, func(tx *filedb.CollectionTx[Review]) error {
		r, err := s.inProduct(tx, productID, reviewID)
		if err != nil {
			return err
		}
		if r.UserID != actor.UserID {
			return fmt.Errorf("%w: not the author", apperr.ErrForbidden)
		}
		return tx.Delete(reviewID)
	})
}

// inProduct loads a review and checks it belongs to productID.
func (s *Service) inProduct(tx *filedb.CollectionTx[Review], productID, reviewID string) (Review, error) {
	r, err := tx.Get(reviewID)
	if err != nil {
		return Review{}, err
	}
	if r.ProductID != productID {
		return Review{}, fmt.Errorf("%w: review does not belong to product", apperr.ErrValidation)
	}
	return r, nil
}
