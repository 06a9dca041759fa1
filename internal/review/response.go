package review

import (
	"context"
	"fmt"
	"strings"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/filedb"
)

var (
	errAdminOnly  = fmt.Errorf("%w: admin privileges required", apperr.ErrForbidden)
	errNoResponse = fmt.Errorf("%w: review has no response", apperr.ErrNotFound)
)

// CreateResponse attaches the shop's reply to a review. A review holds at
// most one response.
func (s *Service) CreateResponse(ctx context.Context, actor auth.Identity, productID, reviewID, body string) (Review, error) {
	return s.respond(ctx, actor, productID, reviewID, body, func(r *Review) error {
		if r.hasResponse() {
			return fmt.Errorf("%w: review already has a response", apperr.ErrValidation)
		}
		now := s.now()
		r.ResponseCreatedAt = &now
		r.ResponseUpdatedAt = nil
		return nil
	})
}

func (s *Service) EditResponse(ctx context.Context, actor auth.Identity, productID, reviewID, body string) (Review, error) {
	return s.respond(ctx, actor, productID, reviewID, body, func(r *Review) error {
		if !r.hasResponse() {
			return errNoResponse
		}
		now := s.now()
		r.ResponseUpdatedAt = &now
		return nil
	})
}

func (s *Service) DeleteResponse(ctx context.Context, actor auth.Identity, productID, reviewID string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	return s.reviews.Mutate(ctx, func(tx *filedb.CollectionTx[Review]) error {
		r, err := s.inProduct(tx, productID, reviewID)
		if err != nil {
			return err
		}
		if !r.hasResponse() {
			return errNoResponse
		}
		r.ResponseBody = ""
		r.ResponseAuthorID = ""
		r.ResponseCreatedAt = nil
		r.ResponseUpdatedAt = nil
		_, err = tx.Put(reviewID, r)
		return err
	})
}

func (s *Service) respond(ctx context.Context, actor auth.Identity, productID, reviewID, body string, check func(r *Review) error) (Review, error) {
	if !actor.IsAdmin() {
		return Review{}, errAdminOnly
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Review{}, fmt.Errorf("%w: response body required", apperr.ErrValidation)
	}

	var out Review
	err := s.reviews.Mutate(ctx, func(tx *filedb.CollectionTx[Review]) error {
		r, err := s.inProduct(tx, productID, reviewID)
		if err != nil {
			return err
		}
		if err := check(&r); err != nil {
			return err
		}
		r.ResponseBody = body
		r.ResponseAuthorID = actor.UserID
		out, err = tx.Put(reviewID, r)
		return err
	})
	return out, err
}
