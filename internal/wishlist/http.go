package wishlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"DecorStore/internal/auth"
	"DecorStore/pkg/kit"
)

const maxBodyBytes = 1 << 16

type Server struct {
	Service *Service
	Log     *zap.Logger
}

// Routes mounts under /api/wishlist.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireUser)

	r.Get("/", s.list)
	r.Post("/", s.add)
	r.Delete("/{id}", s.remove)
	r.Post("/{id}/move-to-cart", s.moveToCart)

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	items, err := s.Service.List(r.Context(), actor)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, items)
}

type addReq struct {
	ProductID string `json:"product_id"`
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req addReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	it, created, err := s.Service.Add(r.Context(), actor, req.ProductID)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	kit.WriteJSON(w, status, it)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	if err := s.Service.Remove(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveToCart(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	cart, err := s.Service.MoveToCart(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, cart)
}
