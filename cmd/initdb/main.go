// Command initdb creates the table files, seeds the admin account and
// optionally loads products from a workbook or a small sample set.
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"DecorStore/internal/app"
	"DecorStore/internal/auth"
	"DecorStore/internal/catalog"
	"DecorStore/internal/config"
	"DecorStore/pkg/kit"
)

type sample struct {
	name, category, description string
	price                       float64
	stock                       int
}

var samples = []sample{
	{"Rattan Pendant Lamp", "lighting", "Hand woven rattan shade", 49.90, 12},
	{"Linen Cushion Cover", "textiles", "Stonewashed linen, 45x45 cm", 19.50, 40},
	{"Ceramic Vase", "decor", "Matte glaze, 30 cm", 34.00, 8},
	{"Oak Wall Shelf", "furniture", "Solid oak with hidden brackets", 79.00, 5},
}

func main() {
	importPath := flag.String("import", "", "xlsx workbook of products to import")
	withSamples := flag.Bool("samples", false, "insert sample products when the catalog is empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger("initdb", "info").Fatal("load config failed", zap.Error(err))
	}
	log := kit.NewLogger("initdb", cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Fatal("open data dir failed", zap.Error(err))
	}
	log.Info("tables ready", zap.String("dir", a.DB.Dir()), zap.Strings("tables", a.DB.Names()))

	if err := a.SeedAdmin(ctx); err != nil {
		log.Fatal("seed admin failed", zap.Error(err))
	}
	admin, err := a.Users.Verify(ctx, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		if *importPath == "" && !*withSamples {
			return
		}
		log.Fatal("admin login failed", zap.Error(err))
	}
	actor := auth.Identity{UserID: admin.ID, Role: admin.Role}

	if *importPath != "" {
		data, err := os.ReadFile(*importPath)
		if err != nil {
			log.Fatal("read workbook failed", zap.Error(err))
		}
		res, err := a.Catalog.Import(ctx, actor, data)
		if err != nil {
			log.Fatal("import failed", zap.Error(err))
		}
		log.Info("import done",
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("skipped", res.Skipped),
		)
		for _, e := range res.Errors {
			log.Warn("skipped row", zap.String("reason", e))
		}
	}

	if *withSamples {
		seedSamples(ctx, log, a.Catalog, actor)
	}
}

func seedSamples(ctx context.Context, log *zap.Logger, svc *catalog.Service, actor auth.Identity) {
	existing, err := svc.List(ctx, catalog.Query{Limit: 1})
	if err != nil {
		log.Fatal("list products failed", zap.Error(err))
	}
	if len(existing) > 0 {
		log.Info("catalog not empty, samples skipped")
		return
	}

	for _, s := range samples {
		s := s
		p, err := svc.Create(ctx, actor, catalog.Input{
			Name:        &s.name,
			Description: &s.description,
			Category:    &s.category,
			Price:       &s.price,
			Stock:       &s.stock,
		})
		if err != nil {
			log.Fatal("create sample failed", zap.String("name", s.name), zap.Error(err))
		}
		log.Info("sample product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
}
