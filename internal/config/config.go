// Package config loads the service settings. Sources, lowest priority
// first: built-in defaults, an optional YAML file named by CONFIG_FILE, an
// optional .env file, and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DecorStore/internal/filedb"
)

const (
	AuthStub = "stub"
	AuthJWT  = "jwt"

	minJWTSecretLen = 32
)

// Config holds all application configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	Store   StoreConfig   `yaml:"store"`
	Images  ImagesConfig  `yaml:"images"`
	Auth    AuthConfig    `yaml:"auth"`
	Admin   AdminConfig   `yaml:"admin"`
	Metrics MetricsConfig `yaml:"metrics"`
	Policy  PolicyConfig  `yaml:"policy"`
}

// StoreConfig describes where the table files live.
type StoreConfig struct {
	DataDir     string            `yaml:"data_dir"`
	Files       map[string]string `yaml:"files"`
	LockTimeout time.Duration     `yaml:"lock_timeout"`
	Strict      bool              `yaml:"strict"`
}

type ImagesConfig struct {
	Dir            string `yaml:"dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// AuthConfig selects the bearer token interpretation.
type AuthConfig struct {
	Mode           string        `yaml:"mode"`
	JWTSecret      string        `yaml:"jwt_secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

// AdminConfig is the account seeded at startup when no admin exists.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// PolicyConfig switches the duplicate handling of wishlists and reviews.
type PolicyConfig struct {
	WishlistUnique   bool `yaml:"wishlist_unique"`
	ReviewOnePerUser bool `yaml:"review_one_per_user"`
}

func Defaults() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Store: StoreConfig{
			DataDir: "data",
			Files: map[string]string{
				filedb.Users:     "users.csv",
				filedb.Products:  "products.csv",
				filedb.Orders:    "orders.csv",
				filedb.Carts:     "carts.csv",
				filedb.Wishlists: "wishlists.csv",
				filedb.Reviews:   "reviews.csv",
			},
			LockTimeout: filedb.DefaultLockTimeout,
		},
		Images: ImagesConfig{
			Dir:            "static/images",
			MaxUploadBytes: 5 << 20,
		},
		Auth: AuthConfig{
			Mode:           AuthStub,
			JWTSecret:      "dev-secret-change-me",
			AccessTokenTTL: 24 * time.Hour,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "adminpass",
			Email:    "admin@example.com",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

var tableEnv = map[string]string{
	filedb.Users:     "USERS_FILE",
	filedb.Products:  "PRODUCTS_FILE",
	filedb.Orders:    "ORDERS_FILE",
	filedb.Carts:     "CARTS_FILE",
	filedb.Wishlists: "WISHLISTS_FILE",
	filedb.Reviews:   "REVIEWS_FILE",
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	setString(&cfg.Store.DataDir, "DATA_DIR")
	if cfg.Store.Files == nil {
		cfg.Store.Files = map[string]string{}
	}
	for table, key := range tableEnv {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			cfg.Store.Files[table] = v
		}
	}

	setString(&cfg.Images.Dir, "IMAGE_DIR")
	setString(&cfg.Auth.Mode, "AUTH_MODE")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Metrics.Token, "METRICS_TOKEN")

	var errs []error
	errs = append(errs,
		setDuration(&cfg.Store.LockTimeout, "FILEDB_LOCK_TIMEOUT"),
		setDuration(&cfg.Auth.AccessTokenTTL, "ACCESS_TOKEN_TTL"),
		setBool(&cfg.Store.Strict, "FILEDB_STRICT"),
		setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED"),
		setBool(&cfg.Policy.WishlistUnique, "WISHLIST_UNIQUE"),
		setBool(&cfg.Policy.ReviewOnePerUser, "REVIEW_ONE_PER_USER"),
		setInt64(&cfg.Images.MaxUploadBytes, "MAX_UPLOAD_BYTES"),
	)
	return errors.Join(errs...)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Store.DataDir) == "" {
		errs = append(errs, errors.New("DATA_DIR must not be empty"))
	}
	if c.Store.LockTimeout <= 0 {
		errs = append(errs, errors.New("FILEDB_LOCK_TIMEOUT must be positive"))
	}
	if c.Images.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.Auth.Mode {
	case AuthStub:
	case AuthJWT:
		if len(c.Auth.JWTSecret) < minJWTSecretLen {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d chars in jwt mode", minJWTSecretLen))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthStub, AuthJWT, c.Auth.Mode))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// FileDB converts the store section for filedb.Open.
func (c *Config) FileDB() filedb.Config {
	return filedb.Config{
		Dir:         c.Store.DataDir,
		Files:       c.Store.Files,
		LockTimeout: c.Store.LockTimeout,
		Strict:      c.Store.Strict,
	}
}

// String returns a representation with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, DataDir: %s, Images: %s, Auth: %s ***, Strict: %t}",
		c.Addr, c.Store.DataDir, c.Images.Dir, c.Auth.Mode, c.Store.Strict)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*dst = n
	return nil
}
