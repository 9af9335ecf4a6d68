package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/checklist-advisor/internal/platform/ctxutil"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

const (
	headerRequestID = "X-Request-Id"
	headerTraceID   = "X-Trace-Id"
)

// RequestContext stamps each request with request and trace ids (and the
// content kind on kind-scoped routes), echoes the ids back, and logs one line
// once the handler returns.
func RequestContext(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		td := &ctxutil.TraceData{
			RequestID: orNewID(c.GetHeader(headerRequestID)),
			TraceID:   traceIDFor(c),
			Kind:      c.Param("kind"),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header(headerRequestID, td.RequestID)
		c.Header(headerTraceID, td.TraceID)

		c.Next()

		if log != nil {
			logRequest(log, c, time.Since(start))
		}
	}
}

// traceIDFor prefers the span otelgin started, then a caller-supplied id.
func traceIDFor(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return orNewID(c.GetHeader(headerTraceID))
}

func orNewID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return uuid.NewString()
}

func logRequest(log *logger.Logger, c *gin.Context, elapsed time.Duration) {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	status := c.Writer.Status()
	if route == "/healthcheck" && status == http.StatusOK {
		return
	}

	kv := append([]interface{}{
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"bytes", c.Writer.Size(),
		"latency", elapsed.String(),
	}, ctxutil.LogFields(c.Request.Context())...)
	if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
		kv = append(kv, "errors", errs.String())
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", kv...)
	case status >= http.StatusBadRequest:
		log.Warn("request rejected", kv...)
	default:
		log.Debug("request served", kv...)
	}
}
