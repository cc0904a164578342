package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/dataimport-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// IDs echoes or mints request and trace ids. A live otel span wins over a
// minted trace id so log lines and exported spans agree.
func IDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := ctxutil.Trace{
			RequestID: headerOr(c, HeaderRequestID, uuid.NewString),
			TraceID:   headerOr(c, HeaderTraceID, func() string { return spanTraceID(c) }),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTrace(c.Request.Context(), t))
		c.Header(HeaderRequestID, t.RequestID)
		c.Header(HeaderTraceID, t.TraceID)
		c.Next()
	}
}

func headerOr(c *gin.Context, name string, mint func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return mint()
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
