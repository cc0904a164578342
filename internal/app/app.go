package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	apphttp "github.com/yungbote/dataimport-backend/internal/http"
	httpH "github.com/yungbote/dataimport-backend/internal/http/handlers"
	"github.com/yungbote/dataimport-backend/internal/observability"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    repos.Set
	Services Services
	Metrics  *observability.Metrics

	shutdownOTel func(context.Context) error
}

// New loads config and wires every dependency. Nothing runs until Run.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownOTel := observability.InitOTel(ctx, log, cfg.OTel)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownOTel(ctx)
		log.Sync()
		return nil, err
	}
	theDB := clients.Postgres.DB()

	metrics := observability.New()
	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close(ctx)
		_ = shutdownOTel(ctx)
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run starts the worker pool, janitor, signal forwarder, collectors and the ops
// server. It blocks until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	g, ctx := errgroup.WithContext(ctx)

	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB, a.Cfg.MetricsInterval)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr, a.Cfg.MetricsInterval)

	if a.Clients.Signals != nil {
		g.Go(func() error { return a.Clients.Signals.StartForwarder(ctx) })
	}
	g.Go(func() error { return a.Services.Worker.Run(ctx) })
	g.Go(func() error { return a.Services.Janitor.Run(ctx) })

	if a.Cfg.OpsAddr != "" {
		router := apphttp.NewRouter(apphttp.RouterConfig{
			Log:           a.Log,
			ServiceName:   a.otelService(),
			HealthHandler: httpH.NewHealthHandler(a.readinessChecks()),
			Metrics:       a.Metrics.Handler(),
		})
		srv := apphttp.NewServer(a.Log, a.Cfg.OpsAddr, router)
		g.Go(func() error { return srv.Run(ctx) })
	}

	return g.Wait()
}

func (a *App) otelService() string {
	if !a.Cfg.OTel.Enabled {
		return ""
	}
	return a.Cfg.OTel.ServiceName
}

func (a *App) readinessChecks() map[string]httpH.Check {
	checks := map[string]httpH.Check{
		"postgres": a.Clients.Postgres.Ping,
	}
	if a.Clients.Neo4j != nil {
		checks["neo4j"] = a.Clients.Neo4j.Ping
	}
	return checks
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close(ctx)
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
