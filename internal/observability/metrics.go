package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	stepItems    *prometheus.CounterVec
	stepCommits  *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
	pgStats      *prometheus.GaugeVec
	redisUp      prometheus.Gauge
	redisPing    prometheus.Gauge
	janitorRuns  *prometheus.CounterVec
	janitorRows  *prometheus.CounterVec
}

var queueStatuses = []string{
	types.StatusQueued,
	types.StatusRunning,
	types.StatusStopping,
	types.StatusStopped,
	types.StatusSucceeded,
	types.StatusFailed,
	types.StatusAbandoned,
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promFactory{reg}

	return &Metrics{
		registry: reg,
		jobsFinished: f.counterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"job_type", "status"}),
		jobDuration: f.histogramVec(prometheus.HistogramOpts{
			Namespace: "dataimport",
			Name:      "job_duration_seconds",
			Help:      "Time from claim to terminal status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"job_type", "status"}),
		stepItems: f.counterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "step_items_total",
			Help:      "Items read, written and skipped by chunked steps.",
		}, []string{"job_type", "step", "kind"}),
		stepCommits: f.counterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "step_commits_total",
			Help:      "Chunk commits by chunked steps.",
		}, []string{"job_type", "step"}),
		queueDepth: f.gaugeVec(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "job_queue_depth",
			Help:      "Job runs by status.",
		}, []string{"status"}),
		pgStats: f.gaugeVec(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "postgres_pool",
			Help:      "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.gauge(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "redis_up",
			Help:      "Whether the last redis ping succeeded (1/0).",
		}),
		redisPing: f.gauge(prometheus.GaugeOpts{
			Namespace: "dataimport",
			Name:      "redis_ping_seconds",
			Help:      "Latency of the last redis ping.",
		}),
		janitorRuns: f.counterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "janitor_runs_total",
			Help:      "Janitor task runs by result.",
		}, []string{"task", "result"}),
		janitorRows: f.counterVec(prometheus.CounterOpts{
			Namespace: "dataimport",
			Name:      "janitor_rows_total",
			Help:      "Rows touched by janitor tasks.",
		}, []string{"task"}),
	}
}

type promFactory struct{ reg prometheus.Registerer }

func (f promFactory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(c)
	return c
}

func (f promFactory) gaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	f.reg.MustRegister(g)
	return g
}

func (f promFactory) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.reg.MustRegister(g)
	return g
}

func (f promFactory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.reg.MustRegister(h)
	return h
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// JobFinished records a terminal job transition.
func (m *Metrics) JobFinished(job *types.JobRun) {
	if m == nil || job == nil {
		return
	}
	m.jobsFinished.WithLabelValues(job.JobType, job.Status).Inc()
	if job.LockedAt != nil {
		m.jobDuration.WithLabelValues(job.JobType, job.Status).Observe(time.Since(*job.LockedAt).Seconds())
	}
}

// StepFinished records the counters of a finished chunked step.
func (m *Metrics) StepFinished(jobType, stepName string, stats step.Stats) {
	if m == nil {
		return
	}
	m.stepItems.WithLabelValues(jobType, stepName, "read").Add(float64(stats.ReadCount))
	m.stepItems.WithLabelValues(jobType, stepName, "write").Add(float64(stats.WriteCount))
	m.stepItems.WithLabelValues(jobType, stepName, "skip").Add(float64(stats.SkipCount))
	m.stepCommits.WithLabelValues(jobType, stepName).Add(float64(stats.Commits))
}

// JanitorRun records one janitor task run.
func (m *Metrics) JanitorRun(task string, rows int64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.janitorRuns.WithLabelValues(task, result).Inc()
	if rows > 0 {
		m.janitorRows.WithLabelValues(task).Add(float64(rows))
	}
}

// SetQueueDepth replaces the queue gauges. Missing statuses are reported as 0.
func (m *Metrics) SetQueueDepth(counts map[string]int64) {
	if m == nil {
		return
	}
	for _, s := range queueStatuses {
		m.queueDepth.WithLabelValues(s).Set(0)
	}
	for status, n := range counts {
		status = strings.TrimSpace(status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.WithLabelValues(status).Set(float64(n))
	}
}

// RefreshQueueDepth counts job runs per status.
func (m *Metrics) RefreshQueueDepth(ctx context.Context, db *gorm.DB) error {
	if m == nil || db == nil {
		return nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] += row.Count
	}
	m.SetQueueDepth(counts)
	return nil
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					log.Warn("metrics: postgres stats unavailable", "error", err)
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.pgStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string, interval time.Duration) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					log.Warn("metrics: redis ping failed", "error", err)
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
