package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/dataimport-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dataimport-backend/internal/http/middleware"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// RouterConfig wires the ops surface: health, readiness and metrics.
type RouterConfig struct {
	Log           *logger.Logger
	ServiceName   string
	HealthHandler *httpH.HealthHandler
	Metrics       nethttp.Handler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.IDs())
	r.Use(httpMW.AccessLog(cfg.Log, "/healthcheck", "/readyz", "/metrics"))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	return r
}
