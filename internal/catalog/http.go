package catalog

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"DecorStore/internal/auth"
	"DecorStore/pkg/kit"
)

const (
	maxBodyBytes   = 1 << 20
	multipartSlack = 1 << 20
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Server struct {
	Service        *Service
	Log            *zap.Logger
	MaxUploadBytes int64

	// Reviews, if set, is mounted at /{id}/reviews.
	Reviews http.Handler
}

// Routes mounts under /api/products.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Get("/{id}", s.get)
	r.Get("/{id}/images", s.listImages)
	if s.Reviews != nil {
		r.Mount("/{id}/reviews", s.Reviews)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/", s.create)
		r.Put("/{id}", s.update)
		r.Delete("/{id}", s.delete)
		r.Post("/{id}/images", s.uploadImage)
		r.Delete("/{id}/images/{filename}", s.deleteImage)
	})

	return r
}

// AdminRoutes mounts under /api/admin/products.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireAdmin)
	r.Get("/export", s.export)
	r.Post("/import", s.importXLSX)
	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := Query{
		Q:        r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}
	var err error
	if q.Limit, err = intParam(r, "limit"); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "limit must be an integer", nil)
		return
	}
	if q.Offset, err = intParam(r, "offset"); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "offset must be an integer", nil)
		return
	}

	products, err := s.Service.List(r.Context(), q)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	p, err := s.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var in Input
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &in); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Service.Create(r.Context(), actor, in)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	var in Input
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &in); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Service.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	if err := s.Service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := s.Service.ListImages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, imgs)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	file, filename, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	img, err := s.Service.SaveImage(r.Context(), actor, chi.URLParam(r, "id"), filename, file)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, img)
}

func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	err := s.Service.DeleteImage(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "filename"))
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	// Buffer so a failed read can still be reported as JSON.
	var buf bytes.Buffer
	if err := s.Service.Export(r.Context(), actor, &buf); err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) importXLSX(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())

	file, _, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "read upload", map[string]any{"cause": err.Error()})
		return
	}

	res, err := s.Service.Import(r.Context(), actor, data)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

// formFile reads the multipart "file" field within the upload limit.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+multipartSlack)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			kit.WriteError(w, r, http.StatusRequestEntityTooLarge, "upload too large", map[string]any{"max_bytes": s.MaxUploadBytes})
			return nil, "", false
		}
		kit.WriteError(w, r, http.StatusBadRequest, "multipart form expected", map[string]any{"cause": err.Error()})
		return nil, "", false
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "file field is required", nil)
		return nil, "", false
	}
	return file, hdr.Filename, true
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
