package security

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Runner executes CPU-bound work off the calling goroutine.
// *workerpool.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost   int
	runner Runner
}

// NewHasher returns a Hasher using cost. When runner is nil the work runs on
// the caller's goroutine.
func NewHasher(cost int, runner Runner) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, runner: runner}
}

// Hash returns the bcrypt digest of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var (
		digest []byte
		err    error
	)
	if runErr := h.run(ctx, func() {
		digest, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	}); runErr != nil {
		return "", runErr
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is a
// mismatch, not an error; only pool failures are returned as errors.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	var err error
	if runErr := h.run(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	}); runErr != nil {
		return false, runErr
	}

	return err == nil, nil
}

func (h *Hasher) run(ctx context.Context, fn func()) error {
	if h.runner == nil {
		fn()
		return nil
	}
	return h.runner.Do(ctx, fn)
}
