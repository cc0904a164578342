package app

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/yungbote/dataimport-backend/internal/data/db"
	"github.com/yungbote/dataimport-backend/internal/dataimport/paper"
	"github.com/yungbote/dataimport-backend/internal/observability"
	"github.com/yungbote/dataimport-backend/internal/platform/neo4jdb"
)

type Config struct {
	LogMode string `envconfig:"LOG_MODE" default:"development"`

	Postgres db.PostgresConfig        `envconfig:"POSTGRES"`
	Neo4j    neo4jdb.Config           `envconfig:"NEO4J"`
	DOI      paper.DOIConfig          `envconfig:"DOI"`
	OTel     observability.OtelConfig `envconfig:"OTEL"`

	// RedisAddr enables the stop signal bus and the redis collector.
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	JobSignalChannel string        `envconfig:"JOB_SIGNAL_CHANNEL" default:"dataimport:jobs"`
	JobSignalTTL     time.Duration `envconfig:"JOB_SIGNAL_TTL" default:"1h"`

	OpsAddr         string        `envconfig:"OPS_ADDR" default:":8081"`
	MetricsInterval time.Duration `envconfig:"METRICS_INTERVAL" default:"15s"`

	JanitorSchedule   string        `envconfig:"JANITOR_SCHEDULE" default:"*/15 * * * *"`
	StagingRetention  time.Duration `envconfig:"STAGING_RETENTION" default:"72h"`
	RowErrorRetention time.Duration `envconfig:"ROW_ERROR_RETENTION" default:"720h"`

	JWTSecretKey string `envconfig:"JWT_SECRET_KEY"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
