package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/internal/security"
	ctxutil "github.com/Payphone-Digital/account-security/pkg/context"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"gorm.io/gorm"
)

// Columns never loaded for a request-scoped user.
var secretColumns = []string{"password", "reset_password_token_hash", "email_verification_token_hash"}

// Optimistic retries for RecordFailedAttempt. Every round lets at least one
// writer through.
const maxAttemptRetries = 64

// ErrContention is returned when a conditional update keeps losing races.
var ErrContention = errors.New("user row is under heavy concurrent update")

const redeemVerificationSQL = `
UPDATE users SET
	is_email_verified = TRUE,
	email_verification_token_hash = NULL,
	email_verification_expire = NULL,
	updated_at = @now
WHERE email_verification_token_hash = @digest
	AND (email_verification_expire IS NULL OR email_verification_expire > @now)
	AND deleted_at IS NULL
RETURNING id`

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "Create")

	start := time.Now()
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return err
	}

	logger.InfoWithContext(ctx, "User created").
		Uint("target_user_id", user.ID).
		String("role", user.Role).
		Duration(time.Since(start)).
		Log()
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindByEmail")

	email = model.NormalizeEmail(email)
	logger.DebugWithContext(ctx, "Getting user by email").
		String("email", email).
		Log()

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.ErrorWithContext(ctx, "Failed to get user by email").
				String("email", email).
				Duration(time.Since(start)).
				Err(err).
				Log()
		}
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindByID")

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.ErrorWithContext(ctx, "Failed to get user by ID").
				Uint("target_user_id", id).
				Duration(time.Since(start)).
				Err(err).
				Log()
		}
		return nil, err
	}

	return &user, nil
}

// FindProfileByID loads a user without any secret column. The request guard
// uses it on every authenticated request.
func (r *UserRepository) FindProfileByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindProfileByID")

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).Omit(secretColumns...).First(&user, id).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.ErrorWithContext(ctx, "Failed to get user profile").
				Uint("target_user_id", id).
				Duration(time.Since(start)).
				Err(err).
				Log()
		}
		return nil, err
	}

	return &user, nil
}

// RecordFailedAttempt applies one failed login to the account and returns
// the resulting counter and lock.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, id uint, now time.Time, policy security.LockoutPolicy) (security.AttemptState, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RecordFailedAttempt")

	start := time.Now()
	next, rounds, err := applyFailure(policy, now,
		func() (security.AttemptState, error) { return r.attemptState(ctx, id) },
		func(from, to security.AttemptState) (bool, error) { return r.swapAttemptState(ctx, id, from, to, now) },
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return security.AttemptState{}, err
		}
		logger.ErrorWithContext(ctx, "Failed to record failed attempt").
			Uint("target_user_id", id).
			Int("rounds", rounds).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return security.AttemptState{}, err
	}

	if rounds > 1 {
		logger.DebugWithContext(ctx, "Failed attempt recorded after retry").
			Uint("target_user_id", id).
			Int("rounds", rounds).
			Log()
	}
	return next, nil
}

// applyFailure is the compare-and-swap loop behind RecordFailedAttempt. The
// next state comes from the lockout policy and is written only if the row
// still holds the state it was computed from; a lost race re-reads and
// tries again, so no failure is dropped.
func applyFailure(
	policy security.LockoutPolicy,
	now time.Time,
	read func() (security.AttemptState, error),
	swap func(from, to security.AttemptState) (bool, error),
) (security.AttemptState, int, error) {
	for round := 1; round <= maxAttemptRetries; round++ {
		current, err := read()
		if err != nil {
			return security.AttemptState{}, round, err
		}

		next := policy.NextFailure(current, now)
		swapped, err := swap(current, next)
		if err != nil {
			return security.AttemptState{}, round, err
		}
		if swapped {
			return next, round, nil
		}
	}
	return security.AttemptState{}, maxAttemptRetries, ErrContention
}

func (r *UserRepository) attemptState(ctx context.Context, id uint) (security.AttemptState, error) {
	var row struct {
		LoginAttempts int
		LockUntil     *time.Time
	}
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Select("login_attempts", "lock_until").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return security.AttemptState{}, err
	}
	return security.AttemptState{Attempts: row.LoginAttempts, LockUntil: row.LockUntil}, nil
}

// swapAttemptState writes next only if the row still matches from. It
// reports false when another writer got there first.
func (r *UserRepository) swapAttemptState(ctx context.Context, id uint, from, next security.AttemptState, now time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND login_attempts = ?", id, from.Attempts)
	if from.LockUntil == nil {
		query = query.Where("lock_until IS NULL")
	} else {
		query = query.Where("lock_until = ?", *from.LockUntil)
	}

	var lockUntil interface{}
	if next.LockUntil != nil {
		lockUntil = *next.LockUntil
	}

	result := query.Updates(map[string]interface{}{
		"login_attempts": next.Attempts,
		"lock_until":     lockUntil,
		"updated_at":     now,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordLoginSuccess clears the lockout fields and stamps last_login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id uint, now time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "RecordLoginSuccess")

	return r.update(ctx, "Failed to record login success",
		r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id),
		map[string]interface{}{
			"login_attempts": 0,
			"lock_until":     nil,
			"last_login":     now,
		})
}

// SetResetToken overwrites any outstanding reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id uint, digest string, expires time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "SetResetToken")

	return r.update(ctx, "Failed to store reset token",
		r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id),
		map[string]interface{}{
			"reset_password_token_hash": digest,
			"reset_password_expire":     expires,
		})
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id uint) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "ClearResetToken")

	return r.update(ctx, "Failed to clear reset token",
		r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id),
		map[string]interface{}{
			"reset_password_token_hash": nil,
			"reset_password_expire":     nil,
		})
}

// FindByResetToken returns the account holding digest with an unexpired
// reset window.
func (r *UserRepository) FindByResetToken(ctx context.Context, digest string, now time.Time) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "FindByResetToken")

	start := time.Now()
	var user model.User
	err := r.db.WithContext(ctx).
		Where("reset_password_token_hash = ? AND reset_password_expire > ?", digest, now).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.ErrorWithContext(ctx, "Failed to look up reset token").
				Duration(time.Since(start)).
				Err(err).
				Log()
		}
		return nil, err
	}

	return &user, nil
}

// CompleteReset sets the new password and clears the reset fields, but only
// if the same token is still outstanding and unexpired. A concurrent second
// redemption affects no rows and gets gorm.ErrRecordNotFound.
func (r *UserRepository) CompleteReset(ctx context.Context, id uint, digest string, now time.Time, passwordHash string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "CompleteReset")

	return r.update(ctx, "Failed to complete password reset",
		r.db.WithContext(ctx).Model(&model.User{}).
			Where("id = ? AND reset_password_token_hash = ? AND reset_password_expire > ?", id, digest, now),
		map[string]interface{}{
			"password":                  passwordHash,
			"reset_password_token_hash": nil,
			"reset_password_expire":     nil,
		})
}

// SetVerificationToken overwrites any outstanding verification token. A nil
// expires stores a token that never expires.
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uint, digest string, expires *time.Time) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "SetVerificationToken")

	return r.update(ctx, "Failed to store verification token",
		r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id),
		map[string]interface{}{
			"email_verification_token_hash": digest,
			"email_verification_expire":     expires,
		})
}

// RedeemVerificationToken marks the holder of digest as verified and clears
// the token in one statement, returning the account id.
func (r *UserRepository) RedeemVerificationToken(ctx context.Context, digest string, now time.Time) (uint, error) {
	ctx = ctxutil.WithFunction(ctx, "repository", "RedeemVerificationToken")

	var row struct{ ID uint }

	start := time.Now()
	result := r.db.WithContext(ctx).Raw(redeemVerificationSQL,
		sql.Named("now", now),
		sql.Named("digest", digest),
	).Scan(&row)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to redeem verification token").
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	return row.ID, nil
}

// UpdatePassword stores a new password hash and invalidates any outstanding
// reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	ctx = ctxutil.WithFunction(ctx, "repository", "UpdatePassword")

	return r.update(ctx, "Failed to update password",
		r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id),
		map[string]interface{}{
			"password":                  passwordHash,
			"reset_password_token_hash": nil,
			"reset_password_expire":     nil,
		})
}

func (r *UserRepository) update(ctx context.Context, failMsg string, query *gorm.DB, values map[string]interface{}) error {
	start := time.Now()
	result := query.Updates(values)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, failMsg).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.DebugWithContext(ctx, "User updated").
		Duration(time.Since(start)).
		Log()
	return nil
}
