package middleware

import (
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 2 * time.Second

// RequestResponseMiddleware logs each completed request at a level picked
// from its status. Request bodies are never logged; they carry passwords.
func RequestResponseMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		var b *logger.ContextLogBuilder
		switch {
		case status >= http.StatusInternalServerError:
			b = logger.ErrorWithContext(ctx, "Server error")
		case status >= http.StatusBadRequest:
			b = logger.WarnWithContext(ctx, "Client error")
		case latency > slowRequestThreshold:
			b = logger.WarnWithContext(ctx, "Slow request")
		default:
			b = logger.InfoWithContext(ctx, "Request completed")
		}

		b.String("method", c.Request.Method).
			Path(c.Request.URL.Path).
			String("user_agent", c.Request.UserAgent()).
			StatusCode(status).
			Duration(latency).
			Int("response_size", c.Writer.Size())

		if len(c.Errors) > 0 {
			b.String("errors", c.Errors.String())
		}
		b.Log()
	}
}

// RecoveryMiddleware recovers from panics and logs them
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.LogPanic(recovered)

		c.AbortWithStatusJSON(http.StatusInternalServerError,
			constants.BuildCodedErrorResponse("INTERNAL_ERROR", constants.MsgInternalError))
	})
}
