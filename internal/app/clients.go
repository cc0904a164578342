package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/dataimport-backend/internal/clients/redis"
	"github.com/yungbote/dataimport-backend/internal/data/db"
	"github.com/yungbote/dataimport-backend/internal/data/graph"
	"github.com/yungbote/dataimport-backend/internal/dataimport/paper"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
	"github.com/yungbote/dataimport-backend/internal/platform/neo4jdb"
)

type Clients struct {
	Postgres *db.PostgresService
	Neo4j    *neo4jdb.Client
	Graph    *graph.Store
	DOI      paper.DOIService
	// Signals is nil when REDIS_ADDR is unset.
	Signals redis.JobSignalBus
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		return out, fmt.Errorf("init postgres: %w", err)
	}
	out.Postgres = pg
	if err := pg.Migrate(); err != nil {
		out.Close(ctx)
		return Clients{}, fmt.Errorf("postgres migrate: %w", err)
	}

	nc, err := neo4jdb.New(log, cfg.Neo4j)
	if err != nil {
		out.Close(ctx)
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	if nc == nil {
		log.Warn("NEO4J_URI not set; validation and import jobs will fail on graph access")
	}
	out.Neo4j = nc
	out.Graph = graph.NewStore(nc, log)
	out.Graph.EnsureSchema(ctx)

	doi, err := paper.NewDOIClient(log, cfg.DOI)
	if err != nil {
		out.Close(ctx)
		return Clients{}, fmt.Errorf("init doi client: %w", err)
	}
	out.DOI = doi

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		bus, err := redis.NewJobSignalBus(log, redis.SignalBusConfig{
			Addr:    cfg.RedisAddr,
			Channel: cfg.JobSignalChannel,
			TTL:     cfg.JobSignalTTL,
		})
		if err != nil {
			out.Close(ctx)
			return Clients{}, fmt.Errorf("init job signal bus: %w", err)
		}
		out.Signals = bus
	} else {
		log.Info("REDIS_ADDR not set; stop requests are picked up by polling only")
	}
	return out, nil
}

func (c Clients) Close(ctx context.Context) {
	if c.Signals != nil {
		_ = c.Signals.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}
