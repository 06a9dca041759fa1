package review

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

// Routes mounts under /api/products/{id}/reviews.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Get("/summary", s.summary)
	r.With(auth.RequireUser).Post("/", s.create)
	r.With(auth.RequireUser).Delete("/{rid}", s.delete)

	r.Route("/{rid}/response", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/", s.createResponse)
		r.Put("/", s.editResponse)
		r.Delete("/", s.deleteResponse)
	})

	return r
}

type createReq struct {
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

type responseReq struct {
	Body string `json:"body"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Service.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, rs)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Service.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req createReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	rv, err := s.Service.Create(r.Context(), actor, chi.URLParam(r, "id"), req.Rating, req.Body)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, rv)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	err := s.Service.Delete(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "rid"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createResponse(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req responseReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	rv, err := s.Service.CreateResponse(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "rid"), req.Body)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, rv)
}

func (s *Server) editResponse(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var req responseReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	rv, err := s.Service.EditResponse(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "rid"), req.Body)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, rv)
}

func (s *Server) deleteResponse(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	err := s.Service.DeleteResponse(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "rid"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
