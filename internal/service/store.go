package service

import (
	"context"
	"time"

	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/internal/security"
)

// UserStore is the persistence the auth flows need. Implementations return
// gorm.ErrRecordNotFound when no row matches, including when a conditional
// update finds its precondition no longer holds.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindProfileByID(ctx context.Context, id uint) (*model.User, error)

	RecordFailedAttempt(ctx context.Context, id uint, now time.Time, policy security.LockoutPolicy) (security.AttemptState, error)
	RecordLoginSuccess(ctx context.Context, id uint, now time.Time) error

	SetResetToken(ctx context.Context, id uint, digest string, expires time.Time) error
	ClearResetToken(ctx context.Context, id uint) error
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*model.User, error)
	CompleteReset(ctx context.Context, id uint, digest string, now time.Time, passwordHash string) error

	SetVerificationToken(ctx context.Context, id uint, digest string, expires *time.Time) error
	RedeemVerificationToken(ctx context.Context, digest string, now time.Time) (uint, error)

	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
}

// PasswordHasher is satisfied by *security.Hasher.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

// Notifier delivers single-use tokens out of band.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendEmailVerification(ctx context.Context, to, name, token string) error
}
