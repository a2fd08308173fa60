package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/Payphone-Digital/account-security/internal/constants"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Count     int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Limiter counts a request against key and decides whether it may proceed.
// Every call counts, including ones that end up rejected.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Key builds the compound (origin, identity) counter key. A missing identity
// is bucketed as "unknown" so anonymous requests from one origin share a
// counter.
func Key(prefix, purpose, origin, identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		identity = constants.RateLimitUnknownID
	}
	return prefix + ":" + purpose + ":" + origin + ":" + identity
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Count:     count,
		ResetAt:   resetAt,
	}
}
