package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"DecorStore/pkg/kit"
)

const (
	maxBodyBytes = 1 << 20

	loginLimitPerMin    = 5
	registerLimitPerMin = 3
	limitWindow         = 60 * time.Second
)

type Server struct {
	Log   *zap.Logger
	Store *Store
	Auth  Authenticator
}

// Routes mounts under /api/auth.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	loginLimiter := kit.NewIPRateLimiter(loginLimitPerMin, limitWindow)
	registerLimiter := kit.NewIPRateLimiter(registerLimitPerMin, limitWindow)

	r.With(registerLimiter.Middleware).Post("/register", s.handleRegister)
	r.With(loginLimiter.Middleware).Post("/login", s.handleLogin)
	r.With(RequireUser).Get("/whoami", s.handleWhoAmI)

	return r
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	u, err := s.Store.Create(r.Context(), req.Username, req.Email, req.Password, RoleUser)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, u)
}

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	login := req.Username
	if login == "" {
		login = req.Email
	}

	u, err := s.Store.Verify(r.Context(), login, req.Password)
	if err != nil {
		kit.WriteAppError(w, r, s.Log, err)
		return
	}

	tok, err := s.Auth.Issue(u)
	if err != nil {
		s.Log.Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{AccessToken: tok, TokenType: "bearer", User: u})
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	resp := map[string]any{
		"user_id": id.UserID,
		"role":    id.Role,
	}
	if u, err := s.Store.Get(r.Context(), id.UserID); err == nil {
		resp["username"] = u.Username
		resp["email"] = u.Email
	}

	kit.WriteJSON(w, http.StatusOK, resp)
}
