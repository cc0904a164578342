package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dataimport-backend/internal/platform/ctxutil"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// AccessLog logs one line per request. Successful hits on quiet routes, the
// scrape and probe endpoints, drop to debug.
func AccessLog(log *logger.Logger, quiet ...string) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if t, ok := ctxutil.TraceFrom(c.Request.Context()); ok {
			fields = append(fields, t.Fields()...)
		}

		_, isQuiet := skip[route]
		switch {
		case status >= 500:
			log.Error("ops request failed", fields...)
		case status >= 400:
			log.Warn("ops request rejected", fields...)
		case isQuiet:
			log.Debug("ops request", fields...)
		default:
			log.Info("ops request", fields...)
		}
	}
}
