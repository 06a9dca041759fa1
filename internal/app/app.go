// Package app wires the table registry, the domain services and the HTTP
// router into one process.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"DecorStore/internal/auth"
	"DecorStore/internal/catalog"
	"DecorStore/internal/config"
	"DecorStore/internal/filedb"
	"DecorStore/internal/order"
	"DecorStore/internal/review"
	"DecorStore/internal/wishlist"
	"DecorStore/pkg/kit"
)

const (
	Service = "decorstore"

	imagesURLPrefix = "/static/images"
	readyTimeout    = 2 * time.Second
)

type App struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *filedb.DB

	Users    *auth.Store
	Auth     auth.Authenticator
	Catalog  *catalog.Service
	Orders   *order.Service
	Wishlist *wishlist.Service
	Reviews  *review.Service

	Handler http.Handler
}

// New opens the data directory and builds every service. reg may be nil,
// in which case no metrics are collected.
func New(cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dbMetrics *filedb.Metrics
	if reg != nil {
		dbMetrics = filedb.NewMetrics(reg)
	}

	db, err := filedb.Open(cfg.FileDB(), log.Named("filedb"), dbMetrics)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, DB: db}
	if err := a.buildServices(); err != nil {
		return nil, err
	}
	a.Handler = a.routes(reg)
	return a, nil
}

func (a *App) buildServices() error {
	var err error

	if a.Users, err = auth.NewStore(a.DB); err != nil {
		return err
	}
	switch a.Config.Auth.Mode {
	case config.AuthJWT:
		a.Auth = auth.JWTAuthenticator{Tokens: auth.NewTokenMaker(a.Config.Auth.JWTSecret, a.Config.Auth.AccessTokenTTL)}
	default:
		a.Auth = auth.StubAuthenticator{Users: a.Users}
	}

	images := &catalog.ImageStore{
		Dir:       a.Config.Images.Dir,
		URLPrefix: imagesURLPrefix,
		MaxBytes:  a.Config.Images.MaxUploadBytes,
	}
	if a.Catalog, err = catalog.NewService(a.DB, images, a.Log.Named("catalog")); err != nil {
		return err
	}
	if a.Orders, err = order.NewService(a.DB, a.Catalog, a.Log.Named("order")); err != nil {
		return err
	}
	if a.Wishlist, err = wishlist.NewService(a.DB, a.Catalog, a.Orders, a.Log.Named("wishlist")); err != nil {
		return err
	}
	a.Wishlist.Unique = a.Config.Policy.WishlistUnique
	if a.Reviews, err = review.NewService(a.DB, a.Catalog, a.Log.Named("review")); err != nil {
		return err
	}
	a.Reviews.OnePerUser = a.Config.Policy.ReviewOnePerUser

	return nil
}

// SeedAdmin creates the configured admin account when none exists.
func (a *App) SeedAdmin(ctx context.Context) error {
	adm := a.Config.Admin
	if adm.Username == "" || adm.Password == "" {
		return nil
	}
	created, err := a.Users.SeedAdmin(ctx, adm.Username, adm.Email, adm.Password)
	if err != nil {
		return err
	}
	if created {
		a.Log.Info("admin account created", zap.String("username", adm.Username))
	}
	return nil
}

func (a *App) routes(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	setupMiddleware(r, a.Log, reg)

	r.Get("/healthz", healthz)
	r.Get("/readyz", a.readyz)
	if reg != nil && a.Config.Metrics.Enabled {
		r.With(kit.MetricsAuth(a.Config.Metrics.Token)).
			Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Handle(imagesURLPrefix+"/*", staticFiles(imagesURLPrefix, a.Config.Images.Dir))

	authSrv := &auth.Server{Log: a.Log, Store: a.Users, Auth: a.Auth}
	catalogSrv := &catalog.Server{
		Service:        a.Catalog,
		Log:            a.Log,
		MaxUploadBytes: a.Config.Images.MaxUploadBytes,
		Reviews:        (&review.Server{Service: a.Reviews, Log: a.Log}).Routes(),
	}
	orderSrv := &order.Server{Service: a.Orders, Log: a.Log}
	wishSrv := &wishlist.Server{Service: a.Wishlist, Log: a.Log}

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Middleware(a.Auth, a.Log))

		api.Mount("/auth", authSrv.Routes())
		api.Mount("/products", catalogSrv.Routes())
		api.Mount("/admin/products", catalogSrv.AdminRoutes())
		api.Mount("/wishlist", wishSrv.Routes())
		api.Mount("/cart", orderSrv.CartRoutes())
		api.Mount("/orders", orderSrv.OrderRoutes())
	})

	return r
}

func setupMiddleware(r *chi.Mux, log *zap.Logger, reg *prometheus.Registry) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(log))
	r.Use(kit.SecureHeaders)

	if reg != nil {
		metrics := kit.NewMetrics(reg)
		r.Use(metrics.Middleware(Service, kit.ChiRoutePatternOrPath))
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := a.DB.Ping(ctx); err != nil {
		a.Log.Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// staticFiles serves uploaded images without directory listings.
func staticFiles(prefix, dir string) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
