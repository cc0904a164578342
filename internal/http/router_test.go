package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/dataimport-backend/internal/http/handlers"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

func TestOpsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write([]byte("dataimport_jobs_finished_total 1\n"))
	})
	r := NewRouter(RouterConfig{
		Log:           logger.Nop(),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Check{"postgres": func(context.Context) error { return nil }}),
		Metrics:       metrics,
	})

	for path, want := range map[string]string{
		"/healthcheck": "ok",
		"/readyz":      `"postgres":"ok"`,
		"/metrics":     "dataimport_jobs_finished_total",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, path, nil))
		if w.Code != nethttp.StatusOK {
			t.Fatalf("%s: status: want=200 got=%d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("%s: body: want substring %q got=%q", path, want, w.Body.String())
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: missing request id header", path)
		}
	}
}
