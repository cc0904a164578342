package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const signalStop = "stop"

// JobSignal is the message published on the job signal channel.
type JobSignal struct {
	Kind  string    `json:"kind"`
	JobID uuid.UUID `json:"job_id"`
	At    time.Time `json:"at"`
}

// JobSignalBus carries stop requests from the process that accepted them to
// the worker running the job. The job row stays authoritative.
type JobSignalBus interface {
	PublishStop(dbc dbctx.Context, jobID uuid.UUID) error
	StopRequested(jobID uuid.UUID) bool
	StartForwarder(ctx context.Context) error
	Close() error
}

type jobSignalBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	stops map[uuid.UUID]time.Time
}

type SignalBusConfig struct {
	Addr    string
	Channel string
	// TTL bounds how long a seen stop is remembered.
	TTL time.Duration
}

func NewJobSignalBus(log *logger.Logger, cfg SignalBusConfig) (JobSignalBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.Channel == "" {
		cfg.Channel = "dataimport:jobs"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newJobSignalBus(log, rdb, cfg), nil
}

func newJobSignalBus(log *logger.Logger, rdb *goredis.Client, cfg SignalBusConfig) *jobSignalBus {
	return &jobSignalBus{
		log:     log.With("service", "RedisJobSignalBus"),
		rdb:     rdb,
		channel: cfg.Channel,
		ttl:     cfg.TTL,
		now:     time.Now,
		stops:   map[uuid.UUID]time.Time{},
	}
}

func (b *jobSignalBus) PublishStop(dbc dbctx.Context, jobID uuid.UUID) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job signal bus not initialized")
	}
	// Local workers see the stop even if the publish is lost.
	b.remember(jobID)
	raw, err := json.Marshal(JobSignal{Kind: signalStop, JobID: jobID, At: b.now().UTC()})
	if err != nil {
		return err
	}
	return b.rdb.Publish(dbc.Ctx, b.channel, raw).Err()
}

func (b *jobSignalBus) StopRequested(jobID uuid.UUID) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.stops[jobID]
	if !ok {
		return false
	}
	if b.now().Sub(at) > b.ttl {
		delete(b.stops, jobID)
		return false
	}
	return true
}

func (b *jobSignalBus) remember(jobID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.stops[jobID] = now
	for id, at := range b.stops {
		if now.Sub(at) > b.ttl {
			delete(b.stops, id)
		}
	}
}

// handle applies one raw channel payload.
func (b *jobSignalBus) handle(payload string) {
	var sig JobSignal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		b.log.Warn("bad redis job signal payload", "error", err)
		return
	}
	if sig.Kind != signalStop || sig.JobID == uuid.Nil {
		return
	}
	b.remember(sig.JobID)
	b.log.Debug("Stop signal received", "job_id", sig.JobID)
}

func (b *jobSignalBus) StartForwarder(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis job signal bus not initialized")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				b.handle(m.Payload)
			}
		}
	}()

	return nil
}

func (b *jobSignalBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
