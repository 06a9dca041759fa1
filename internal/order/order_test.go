package order

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/catalog"
	"DecorStore/internal/filedb"
)

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) Get(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: products %q", apperr.ErrNotFound, id)
	}
	return p, nil
}

var (
	alice = auth.Identity{UserID: "u_alice", Role: auth.RoleUser}
	bob   = auth.Identity{UserID: "u_bob", Role: auth.RoleUser}
	admin = auth.Identity{UserID: "u_admin", Role: auth.RoleAdmin}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := filedb.Open(filedb.Config{Dir: t.TempDir(), LockTimeout: time.Second}, zap.NewNop(), nil)
	require.NoError(t, err)
	s, err := NewService(db, fakeCatalog{
		"p_lamp": {ID: "p_lamp", Name: "Lamp", PriceCents: 2500},
		"p_rug":  {ID: "p_rug", Name: "Rug", PriceCents: 8000},
		"p_gold": {ID: "p_gold", Name: "Gold", PriceCents: math.MaxInt64 / 2},
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestCart_AddMergeRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	c, err := s.CreateCart(ctx, alice, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID, "c_"))
	assert.Empty(t, c.Items)

	_, err = s.AddToCart(ctx, alice, c.ID, CartItem{ProductID: "p_lamp", Quantity: 1})
	require.NoError(t, err)
	c, err = s.AddToCart(ctx, alice, c.ID, CartItem{ProductID: "p_lamp", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, []CartItem{{ProductID: "p_lamp", Quantity: 3}}, c.Items)

	_, err = s.AddToCart(ctx, alice, c.ID, CartItem{ProductID: "p_nope", Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.AddToCart(ctx, alice, c.ID, CartItem{ProductID: "p_rug", Quantity: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.AddToCart(ctx, bob, c.ID, CartItem{ProductID: "p_rug", Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	c, err = s.RemoveFromCart(ctx, alice, c.ID, "p_lamp")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	_, err = s.RemoveFromCart(ctx, alice, c.ID, "p_lamp")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := s.GetCart(ctx, admin, c.ID)
	require.NoError(t, err, "admin may read any cart")
	assert.Equal(t, alice.UserID, got.UserID)

	assert.ErrorIs(t, s.DeleteCart(ctx, bob, c.ID), apperr.ErrForbidden)
	require.NoError(t, s.DeleteCart(ctx, alice, c.ID))
	_, err = s.GetCart(ctx, alice, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCart_AddToUserCartCreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	c1, err := s.AddToUserCart(ctx, alice, "p_lamp", 1)
	require.NoError(t, err)
	c2, err := s.AddToUserCart(ctx, alice, "p_rug", 1)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Len(t, c2.Items, 2)

	carts, err := s.ListCarts(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, carts, 1)
	carts, err = s.ListCarts(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, carts)
}

func TestOrder_CreateFromItems(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	o, err := s.Create(ctx, alice, CreateRequest{
		Items:           []CartItem{{ProductID: "p_lamp", Quantity: 2}, {ProductID: "p_rug", Quantity: 1}},
		ShippingAddress: " 1 Main St ",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.ID, "o_"))
	assert.Equal(t, int64(2*2500+8000), o.TotalCents)
	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, "1 Main St", o.ShippingAddress)
	assert.Equal(t, "Lamp", o.Items[0].Title)
	assert.Equal(t, int64(2500), o.Items[0].UnitPriceCents)

	got, err := s.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, o.TotalCents, got.TotalCents)
}

func TestOrder_CreateRejects(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	cases := map[string]CreateRequest{
		"empty":     {},
		"bad qty":   {Items: []CartItem{{ProductID: "p_lamp", Quantity: 0}}},
		"duplicate": {Items: []CartItem{{ProductID: "p_lamp", Quantity: 1}, {ProductID: "p_lamp", Quantity: 1}}},
		"unknown":   {Items: []CartItem{{ProductID: "p_nope", Quantity: 1}}},
		"overflow":  {Items: []CartItem{{ProductID: "p_gold", Quantity: 3}}},
	}
	for name, req := range cases {
		_, err := s.Create(ctx, alice, req)
		assert.ErrorIs(t, err, apperr.ErrValidation, name)
	}

	all, err := s.List(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOrder_CreateFromCart(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	c, err := s.CreateCart(ctx, alice, []CartItem{{ProductID: "p_rug", Quantity: 2}})
	require.NoError(t, err)

	_, err = s.Create(ctx, bob, CreateRequest{CartID: c.ID})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = s.Create(ctx, alice, CreateRequest{CartID: "c_missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	o, err := s.Create(ctx, alice, CreateRequest{CartID: c.ID, Items: []CartItem{{ProductID: "p_lamp", Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(16000), o.TotalCents, "cart wins over inline items")
}

func TestOrder_StatusAndCancel(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	o, err := s.Create(ctx, alice, CreateRequest{Items: []CartItem{{ProductID: "p_lamp", Quantity: 1}}})
	require.NoError(t, err)

	_, err = s.SetStatus(ctx, admin, o.ID, "lost")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.SetStatus(ctx, bob, o.ID, StatusPaid)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// Owners cannot move their own order along.
	_, err = s.SetStatus(ctx, alice, o.ID, StatusDelivered)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	got, err := s.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaced, got.Status)

	for _, st := range []Status{StatusShipped, StatusPlaced, StatusDelivered} {
		got, err := s.SetStatus(ctx, admin, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}

	_, err = s.Cancel(ctx, bob, o.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	got, err = s.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	_, err = s.Cancel(ctx, alice, o.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOrder_ListScopesToOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	for _, who := range []auth.Identity{alice, alice, bob} {
		_, err := s.Create(ctx, who, CreateRequest{Items: []CartItem{{ProductID: "p_lamp", Quantity: 1}}})
		require.NoError(t, err)
	}

	mine, err := s.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	all, err := s.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.Get(ctx, bob, mine[0].ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

// adminTokenAuth is the stub scheme with "u_admin" as the only admin.
type adminTokenAuth struct{ auth.StubAuthenticator }

func (a adminTokenAuth) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	id, err := a.StubAuthenticator.Authenticate(ctx, token)
	if err == nil && token == "u_admin" {
		id.Role = auth.RoleAdmin
	}
	return id, err
}

func TestHTTP_OrderFlow(t *testing.T) {
	s := newTestService(t)
	srv := &Server{Service: s, Log: zap.NewNop()}

	r := chi.NewRouter()
	r.Use(auth.Middleware(adminTokenAuth{}, zap.NewNop()))
	r.Mount("/api/cart", srv.CartRoutes())
	r.Mount("/api/orders", srv.OrderRoutes())

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/orders", "", "").Code)

	rec := do(http.MethodPost, "/api/cart", "", "u_alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))

	rec = do(http.MethodPost, "/api/cart/"+c.ID+"/items", `{"product_id":"p_lamp"}`, "u_alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(http.MethodPost, "/api/orders", `{"cart_id":"`+c.ID+`"}`, "u_alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, int64(2500), o.TotalCents)

	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/orders/"+o.ID, "", "u_bob").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/orders/o_missing", "", "u_alice").Code)

	rec = do(http.MethodPatch, "/api/orders/"+o.ID+"/status", `{"status":"paid"}`, "u_alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(http.MethodPatch, "/api/orders/"+o.ID+"/status", `{"status":"paid"}`, "u_admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", "", "u_alice").Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/orders/"+o.ID+"/cancel", "", "u_alice").Code)
}
