package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DecorStore/internal/filedb"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG_FILE", "ADDR", "LOG_LEVEL", "DATA_DIR", "IMAGE_DIR", "AUTH_MODE", "JWT_SECRET",
		"ACCESS_TOKEN_TTL", "FILEDB_LOCK_TIMEOUT", "FILEDB_STRICT", "WISHLIST_UNIQUE",
		"REVIEW_ONE_PER_USER", "MAX_UPLOAD_BYTES", "METRICS_ENABLED", "PRODUCTS_FILE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
	// .env lookups are relative to the working directory.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, AuthStub, cfg.Auth.Mode)
	assert.Equal(t, "products.csv", cfg.Store.Files[filedb.Products])
	assert.Equal(t, filedb.DefaultLockTimeout, cfg.Store.LockTimeout)
	assert.False(t, cfg.Policy.WishlistUnique)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/decor")
	t.Setenv("PRODUCTS_FILE", "products.xlsx")
	t.Setenv("FILEDB_LOCK_TIMEOUT", "250ms")
	t.Setenv("FILEDB_STRICT", "true")
	t.Setenv("REVIEW_ONE_PER_USER", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/decor", cfg.FileDB().Dir)
	assert.Equal(t, "products.xlsx", cfg.FileDB().Files[filedb.Products])
	assert.Equal(t, 250*time.Millisecond, cfg.FileDB().LockTimeout)
	assert.True(t, cfg.FileDB().Strict)
	assert.True(t, cfg.Policy.ReviewOnePerUser)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "decor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
store:
  data_dir: /var/lib/decor
  lock_timeout: 2s
policy:
  wishlist_unique: true
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "/var/lib/decor", cfg.Store.DataDir)
	assert.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	assert.True(t, cfg.Policy.WishlistUnique)
	assert.Equal(t, "users.csv", cfg.Store.Files[filedb.Users], "defaults survive a partial files map")
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("ADMIN_USERNAME")
	require.NoError(t, os.WriteFile(".env", []byte("ADMIN_USERNAME=curator\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ADMIN_USERNAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "curator", cfg.Admin.Username)
}

func TestLoad_JWTModeRequiresLongSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", AuthJWT)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	_, err = Load()
	require.NoError(t, err)
}

func TestLoad_BadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("FILEDB_LOCK_TIMEOUT", "soon")
	t.Setenv("AUTH_MODE", "oauth")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILEDB_LOCK_TIMEOUT")
}

func TestString_MasksSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = "super-secret-value"
	assert.NotContains(t, cfg.String(), "super-secret-value")
}
