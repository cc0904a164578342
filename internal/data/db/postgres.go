package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// PostgresConfig is filled by envconfig under the POSTGRES prefix.
type PostgresConfig struct {
	Host         string        `envconfig:"HOST" default:"localhost"`
	Port         string        `envconfig:"PORT" default:"5432"`
	User         string        `envconfig:"USER" default:"postgres"`
	Password     string        `envconfig:"PASSWORD"`
	Name         string        `envconfig:"NAME" default:"dataimport"`
	SSLMode      string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLife  time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	SlowQuery    time.Duration `envconfig:"SLOW_QUERY" default:"1s"`
}

// DSN escapes credentials so passwords with reserved characters survive.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// gormWriter routes gorm's slow-query and error lines into the service log.
type gormWriter struct{ log *logger.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger, cfg PostgresConfig) (*PostgresService, error) {
	log = log.Named("postgres")

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(gormWriter{log}, gormLogger.Config{
			SlowThreshold:             cfg.SlowQuery,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return nil, fmt.Errorf("postgres: uuid-ossp: %w", err)
	}

	log.Info("postgres connected", "host", cfg.Host, "db", cfg.Name)
	return &PostgresService{db: db, log: log}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Migrate() error {
	if err := AutoMigrateAll(s.db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	s.log.Info("schema migrated")
	return nil
}

func (s *PostgresService) Ping(ctx context.Context) error {
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (s *PostgresService) Close() error {
	pool, err := s.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}
