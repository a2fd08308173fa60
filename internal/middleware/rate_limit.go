package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/Payphone-Digital/account-security/internal/constants"
	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/internal/ratelimit"
	ctxutil "github.com/Payphone-Digital/account-security/pkg/context"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
)

const maxPeekBody = 64 << 10

// RateLimit throttles requests per (client IP, submitted email) pair. Every
// request is counted, whatever the handler later decides. If the limiter
// itself fails the request is let through.
func RateLimit(limiter ratelimit.Limiter, prefix, purpose string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithFunction(c.Request.Context(), "middleware", "RateLimit")

		key := ratelimit.Key(prefix, purpose, c.ClientIP(), peekEmail(c))
		decision, err := limiter.Allow(ctx, key)
		if err != nil {
			logger.ErrorWithContext(ctx, "Rate limiter unavailable, allowing request").
				String("purpose", purpose).
				Err(err).
				Log()
			c.Next()
			return
		}

		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := decision.RetryAfter(time.Now())
			logger.WarnWithContext(ctx, "Rate limit exceeded").
				String("purpose", purpose).
				Int("count", decision.Count).
				Int("limit", decision.Limit).
				Duration(retryAfter).
				Log()

			c.Header(constants.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			abortWithError(c, apperrors.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}

// peekEmail reads the email field from a JSON body and restores the body
// for the handler. Unparseable bodies yield "".
func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody))
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))

	var payload struct {
		Email string `json:"email"`
	}
	// Decode only the first value, as ValidateJSON does, so trailing data
	// cannot move the request into a different bucket.
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Email
}
