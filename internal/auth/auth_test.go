package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"DecorStore/internal/apperr"
	"DecorStore/internal/filedb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := filedb.Open(filedb.Config{Dir: t.TempDir(), LockTimeout: time.Second}, zap.NewNop(), nil)
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)
	s.cost = bcrypt.MinCost
	return s
}

func TestStore_CreateAndVerify(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, "alice", " Alice@Example.com ", "password1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.NotEqual(t, "password1", u.PasswordHash)

	for _, login := range []string{"alice", "ALICE", "alice@example.com", u.ID} {
		got, err := s.Verify(ctx, login, "password1")
		require.NoError(t, err, login)
		assert.Equal(t, u.ID, got.ID)
	}

	_, err = s.Verify(ctx, "alice", "wrong-pass")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = s.Verify(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestStore_CreateRejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, "bob", "bob@example.com", "password1", RoleUser)
	require.NoError(t, err)

	_, err = s.Create(ctx, "BOB", "other@example.com", "password1", RoleUser)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = s.Create(ctx, "bobby", "bob@example.com", "password1", RoleUser)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.Create(ctx, "carol", "carol@example.com", "short", RoleUser)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Create(ctx, "", "x@example.com", "password1", RoleUser)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Create(ctx, "dave", "not-an-email", "password1", RoleUser)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStore_SeedAdminOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.SeedAdmin(ctx, "admin", "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.SeedAdmin(ctx, "admin2", "admin2@example.com", "adminpass")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := s.Verify(ctx, "admin", "adminpass")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}

func TestStubAuthenticator(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	admin, err := s.Create(ctx, "root", "root@example.com", "password1", RoleAdmin)
	require.NoError(t, err)

	a := StubAuthenticator{Users: s}

	id, err := a.Authenticate(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: admin.ID, Role: RoleAdmin}, id)

	id, err = a.Authenticate(ctx, "u_unknown")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u_unknown", Role: RoleUser}, id)

	_, err = a.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	tok, err := a.Issue(admin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, tok)
}

func TestJWTAuthenticator(t *testing.T) {
	tm := NewTokenMaker("0123456789abcdef0123456789abcdef", time.Hour)
	a := JWTAuthenticator{Tokens: tm}

	tok, err := a.Issue(User{ID: "u_1", Email: "a@b.c", Role: RoleAdmin})
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u_1", Role: RoleAdmin}, id)

	other := JWTAuthenticator{Tokens: NewTokenMaker("ffffffffffffffffffffffffffffffff", time.Hour)}
	_, err = other.Authenticate(context.Background(), tok)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	expired := JWTAuthenticator{Tokens: NewTokenMaker("0123456789abcdef0123456789abcdef", -time.Minute)}
	old, err := expired.Issue(User{ID: "u_1"})
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), old)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestIdentityCan(t *testing.T) {
	assert.True(t, Identity{UserID: "u1"}.Can("u1"))
	assert.False(t, Identity{UserID: "u1"}.Can("u2"))
	assert.False(t, Identity{}.Can(""))
	assert.True(t, Identity{UserID: "a", Role: RoleAdmin}.Can("u2"))
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := &Server{Log: zap.NewNop(), Store: newTestStore(t)}
	s.Auth = StubAuthenticator{Users: s.Store}

	r := chi.NewRouter()
	r.Use(Middleware(s.Auth, s.Log))
	r.Mount("/api/auth", s.Routes())
	r.With(RequireAdmin).Get("/admin", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s, r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_RegisterLoginWhoAmI(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/api/auth/register", map[string]string{
		"username": "erin", "email": "erin@example.com", "password": "password1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = postJSON(t, h, "/api/auth/register", map[string]string{
		"username": "erin", "email": "erin@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, h, "/api/auth/login", map[string]string{"username": "erin", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login loginResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.AccessToken)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"erin"`)

	rec = postJSON(t, h, "/api/auth/login", map[string]string{"username": "erin", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_Guards(t *testing.T) {
	s, h := newTestServer(t)
	admin, err := s.Store.Create(context.Background(), "root", "root@example.com", "password1", RoleAdmin)
	require.NoError(t, err)

	for tok, want := range map[string]int{
		"":       http.StatusUnauthorized,
		"u_joe":  http.StatusForbidden,
		admin.ID: http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, tok)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
