package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
)

func TestJobAndStepMetrics(t *testing.T) {
	m := New()
	locked := time.Now().Add(-time.Second)
	m.JobFinished(&types.JobRun{JobType: "validate-paper-csv", Status: types.StatusSucceeded, LockedAt: &locked})
	m.JobFinished(&types.JobRun{JobType: "validate-paper-csv", Status: types.StatusSucceeded})

	if got := testutil.ToFloat64(m.jobsFinished.WithLabelValues("validate-paper-csv", types.StatusSucceeded)); got != 2 {
		t.Fatalf("jobs finished: want=2 got=%v", got)
	}

	m.StepFinished("validate-paper-csv", "parse", step.Stats{ReadCount: 10, WriteCount: 8, SkipCount: 2, Commits: 3})
	if got := testutil.ToFloat64(m.stepItems.WithLabelValues("validate-paper-csv", "parse", "skip")); got != 2 {
		t.Fatalf("skipped items: want=2 got=%v", got)
	}
	if got := testutil.ToFloat64(m.stepCommits.WithLabelValues("validate-paper-csv", "parse")); got != 3 {
		t.Fatalf("commits: want=3 got=%v", got)
	}
}

func TestSetQueueDepthResetsMissingStatuses(t *testing.T) {
	m := New()
	m.SetQueueDepth(map[string]int64{types.StatusQueued: 4, types.StatusRunning: 1})
	m.SetQueueDepth(map[string]int64{types.StatusRunning: 2})

	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues(types.StatusQueued)); got != 0 {
		t.Fatalf("queued: want=0 got=%v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues(types.StatusRunning)); got != 2 {
		t.Fatalf("running: want=2 got=%v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.JobFinished(&types.JobRun{})
	m.StepFinished("a", "b", step.Stats{})
	m.JanitorRun("x", 1, nil)
	m.SetQueueDepth(nil)
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}
