package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Postgres.Port != "5432" || cfg.Postgres.Name != "dataimport" {
		t.Fatalf("postgres: want=5432/dataimport got=%s/%s", cfg.Postgres.Port, cfg.Postgres.Name)
	}
	if cfg.OpsAddr != ":8081" {
		t.Fatalf("ops addr: want=:8081 got=%s", cfg.OpsAddr)
	}
	if cfg.StagingRetention != 72*time.Hour || cfg.RowErrorRetention != 720*time.Hour {
		t.Fatalf("retention: got=%s/%s", cfg.StagingRetention, cfg.RowErrorRetention)
	}
	if cfg.DOI.BaseURL != "https://doi.org" || cfg.OTel.SampleRatio != 0.1 {
		t.Fatalf("nested defaults: got=%s/%v", cfg.DOI.BaseURL, cfg.OTel.SampleRatio)
	}
}

func TestLoadConfigReadsPrefixedEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("NEO4J_URI", "neo4j://graph:7687")
	t.Setenv("DOI_MAX_RETRIES", "5")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "api-key:abc,team:data")
	t.Setenv("JANITOR_SCHEDULE", "0 * * * *")
	t.Setenv("STAGING_RETENTION", "1h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Neo4j.URI != "neo4j://graph:7687" {
		t.Fatalf("stores: got=%s/%s", cfg.Postgres.Host, cfg.Neo4j.URI)
	}
	if cfg.DOI.MaxRetries != 5 || !cfg.OTel.Enabled || cfg.OTel.Headers["team"] != "data" {
		t.Fatalf("doi/otel: got=%d/%v/%v", cfg.DOI.MaxRetries, cfg.OTel.Enabled, cfg.OTel.Headers)
	}
	if cfg.JanitorSchedule != "0 * * * *" || cfg.StagingRetention != time.Hour {
		t.Fatalf("janitor: got=%s/%s", cfg.JanitorSchedule, cfg.StagingRetention)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("ROW_ERROR_RETENTION", "forever")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig: want error got=nil")
	}
}
