package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

func TestStopSignalsExpire(t *testing.T) {
	b := newJobSignalBus(logger.Nop(), nil, SignalBusConfig{Channel: "c", TTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	id := uuid.New()
	if b.StopRequested(id) {
		t.Fatalf("unknown job reported as stopped")
	}
	raw, _ := json.Marshal(JobSignal{Kind: signalStop, JobID: id, At: now})
	b.handle(string(raw))
	if !b.StopRequested(id) {
		t.Fatalf("stop signal not recorded")
	}

	now = now.Add(2 * time.Minute)
	if b.StopRequested(id) {
		t.Fatalf("stop signal should expire after the ttl")
	}
}

func TestHandleIgnoresForeignPayloads(t *testing.T) {
	b := newJobSignalBus(logger.Nop(), nil, SignalBusConfig{Channel: "c", TTL: time.Minute})
	id := uuid.New()
	b.handle("not json")
	raw, _ := json.Marshal(JobSignal{Kind: "pause", JobID: id})
	b.handle(string(raw))
	if b.StopRequested(id) {
		t.Fatalf("non-stop signal recorded as stop")
	}
	if n := len(b.stops); n != 0 {
		t.Fatalf("recorded signals: want=0 got=%d", n)
	}
}

func TestPublishStopWithoutClient(t *testing.T) {
	var b *jobSignalBus
	if b.StopRequested(uuid.New()) {
		t.Fatalf("nil bus reported a stop")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close nil bus: %v", err)
	}
}
