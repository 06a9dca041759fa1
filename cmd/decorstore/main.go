package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"DecorStore/internal/app"
	"DecorStore/internal/config"
	"DecorStore/pkg/kit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger(app.Service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(app.Service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("starting", zap.Stringer("config", cfg))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(cfg, log, reg)
	if err != nil {
		log.Fatal("init app failed", zap.Error(err))
	}

	if err := a.SeedAdmin(context.Background()); err != nil {
		log.Fatal("seed admin failed", zap.Error(err))
	}

	if err := kit.RunHTTPServer(context.Background(), cfg.Addr, a.Handler, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
