package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"DecorStore/internal/auth"
	"DecorStore/pkg/kit"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Service *Service
	Log     *zap.Logger
}

// CartRoutes mounts under /api/cart.
func (s *Server) CartRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireUser)

	r.Post("/", s.createCart)
	r.Get("/", s.listCarts)
	r.Get("/{id}", s.getCart)
	r.Delete("/{id}", s.deleteCart)
	r.Post("/{id}/items", s.addItem)
	r.Delete("/{id}/items/{product_id}", s.removeItem)

	return r
}

// OrderRoutes mounts under /api/orders.
func (s *Server) OrderRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireUser)

	r.Post("/", s.create)
	r.Get("/", s.list)
	r.Get("/{id}", s.get)
	r.Patch("/{id}/status", s.setStatus)
	r.Post("/{id}/cancel", s.cancel)

	return r
}

type createCartReq struct {
	Items []CartItem `json:"items"`
}

func (s *Server) createCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req createCartReq
	if r.ContentLength != 0 {
		if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
			return
		}
	}

	c, err := s.Service.CreateCart(r.Context(), actor, req.Items)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, c)
}

func (s *Server) listCarts(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	carts, err := s.Service.ListCarts(r.Context(), actor)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, carts)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	c, err := s.Service.GetCart(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	if err := s.Service.DeleteCart(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var it CartItem
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &it); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if it.Quantity == 0 {
		it.Quantity = 1
	}

	c, err := s.Service.AddToCart(r.Context(), actor, chi.URLParam(r, "id"), it)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	c, err := s.Service.RemoveFromCart(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "product_id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req CreateRequest
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	o, err := s.Service.Create(r.Context(), actor, req)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, o)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	orders, err := s.Service.List(r.Context(), actor)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	o, err := s.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

type statusReq struct {
	Status Status `json:"status"`
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req statusReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	o, err := s.Service.SetStatus(r.Context(), actor, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	o, err := s.Service.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}
