package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

var ErrNotConfigured = errors.New("neo4jdb: not configured")

// Config is filled by envconfig under the NEO4J prefix. An empty URI
// disables the client.
type Config struct {
	URI         string        `envconfig:"URI"`
	User        string        `envconfig:"USER" default:"neo4j"`
	Password    string        `envconfig:"PASSWORD"`
	Database    string        `envconfig:"DATABASE"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxPoolSize int           `envconfig:"MAX_POOL_SIZE" default:"50"`
}

func (c Config) enabled() bool { return strings.TrimSpace(c.URI) != "" }

// driverOptions fills in zero values so a Config built in code (tests)
// behaves like one read from the environment.
func (c Config) driverOptions(dc *neo4j.Config) {
	dc.MaxConnectionPoolSize = c.MaxPoolSize
	if dc.MaxConnectionPoolSize <= 0 {
		dc.MaxConnectionPoolSize = 50
	}
	dc.SocketConnectTimeout = c.timeout()
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

// Client owns the driver used by the graph store.
type Client struct {
	driver neo4j.DriverWithContext
	db     string
	log    *logger.Logger
}

// New returns (nil, nil) when cfg.URI is blank; callers treat a nil
// client as "graph disabled".
func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	if !cfg.enabled() {
		return nil, nil
	}

	user := orDefault(strings.TrimSpace(cfg.User), "neo4j")
	driver, err := neo4j.NewDriverWithContext(
		strings.TrimSpace(cfg.URI),
		neo4j.BasicAuth(user, cfg.Password, ""),
		cfg.driverOptions,
	)
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout())
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: connectivity: %w", err)
	}

	c := &Client{driver: driver, db: strings.TrimSpace(cfg.Database)}
	c.log = log.With("client", "neo4j", "database", orDefault(c.db, "default"))
	c.log.Info("neo4j connected")
	return c, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.db})
}

func (c *Client) ReadSession(ctx context.Context) neo4j.SessionWithContext {
	return c.session(ctx, neo4j.AccessModeRead)
}

func (c *Client) WriteSession(ctx context.Context) neo4j.SessionWithContext {
	return c.session(ctx, neo4j.AccessModeWrite)
}

func (c *Client) Configured() bool { return c != nil && c.driver != nil }

// Ping backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}
