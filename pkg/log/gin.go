package log

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// quietPaths are polled by probes and only logged at debug level.
var quietPaths = map[string]bool{
	"/health": true,
}

// GinMiddleware stores a request-scoped logger in the request context and
// logs the completed request at a level matching its status. The request ID
// is taken from X-Request-ID or generated.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.FullPath()).
			Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		evt := requestEvent(child, status, quietPaths[c.Request.URL.Path]).
			Int(FieldStatus, status).
			Int64(FieldLatency, time.Since(start).Milliseconds()).
			Str(FieldClientIP, c.ClientIP())

		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		if status == http.StatusSwitchingProtocols {
			evt.Msg("websocket upgraded")
			return
		}
		evt.Msg("request completed")
	}
}

func requestEvent(l zerolog.Logger, status int, quiet bool) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	case quiet:
		return l.Debug()
	default:
		return l.Info()
	}
}
