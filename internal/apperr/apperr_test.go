package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("product p1: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("rating: %w", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: %w", ErrValidation, ErrUnsupportedMedia), http.StatusUnsupportedMediaType},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrConflict, http.StatusConflict},
		{fmt.Errorf("filedb: %w", ErrBusy), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{ErrCorrupt, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), "err=%v", tc.err)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("products: %w", ErrBusy)))
	assert.False(t, Retryable(ErrConflict))
}
