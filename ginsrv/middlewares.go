package ginsrv

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrorFormatterMiddleware renders the last error attached with c.Error.
// Upstream 4xx responses are passed through with their status and body,
// protocol failures become 502 and exhausted or interrupted calls 504.
// Error statuses set without a body get a generic JSON message.
func ErrorFormatterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if err := c.Errors.Last(); err != nil && !c.Writer.Written() {
			writeError(c, err.Err)
			return
		}

		if c.Writer.Status() >= http.StatusBadRequest && !c.Writer.Written() {
			c.JSON(c.Writer.Status(), gin.H{
				"message": http.StatusText(c.Writer.Status()),
			})
		}
	}
}

func writeError(c *gin.Context, err error) {
	var (
		classified *errs.ClassifiedError
		protocol   *errs.ProtocolError
		terminal   *errs.TerminalError
	)
	switch {
	case errors.As(err, &classified):
		contentType := "text/plain; charset=utf-8"
		if gjson.Valid(classified.Body) {
			contentType = "application/json"
		}
		c.Data(classified.StatusCode, contentType, []byte(classified.Body))
	case errors.As(err, &protocol):
		c.JSON(http.StatusBadGateway, gin.H{"message": protocol.Error()})
	case errors.As(err, &terminal):
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": terminal.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": http.StatusText(http.StatusInternalServerError)})
	}
}

// CorrelationIDMiddleware carries an inbound correlation id into the
// request context, where outbound httpx calls pick it up, and echoes it on
// the response.
func CorrelationIDMiddleware(header string) gin.HandlerFunc {
	if header == "" {
		header = policy.CorrelationHeader
	}
	return func(c *gin.Context) {
		if id := c.GetHeader(header); id != "" {
			c.Request = c.Request.WithContext(policy.WithCorrelationID(c.Request.Context(), id))
			c.Header(header, id)
		}
		c.Next()
	}
}

// LoggerMiddleware writes one access log line per request.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if id, ok := policy.CorrelationIDFrom(c.Request.Context()); ok {
			fields = append(fields, zap.String("correlation_id", id))
		}
		if err := c.Errors.Last(); err != nil {
			fields = append(fields, zap.String("error_kind", errs.Kind(err.Err)), zap.Error(err.Err))
		}
		logger.Info("request served", fields...)
	}
}
