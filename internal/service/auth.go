package service

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/account-security/internal/dto"
	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/internal/security"
	ctxutil "github.com/Payphone-Digital/account-security/pkg/context"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthConfig struct {
	Lockout              security.LockoutPolicy
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration // 0 means the token never expires
	TokenBytes           int
	UniformResetResponse bool
}

type AuthService struct {
	store    UserStore
	hasher   PasswordHasher
	tokens   *JWTService
	notifier Notifier
	cfg      AuthConfig
	now      func() time.Time

	// Verified against on unknown emails so that path costs one bcrypt
	// comparison, like a wrong password does.
	dummyHash string
}

func NewAuthService(store UserStore, hasher PasswordHasher, tokens *JWTService, notifier Notifier, cfg AuthConfig) *AuthService {
	dummy, err := hasher.Hash(context.Background(), "unknown-account-placeholder")
	if err != nil {
		logger.GetLogger().Warn("Failed to prepare placeholder hash", zap.Error(err))
	}

	return &AuthService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login verifies credentials and mints a session token.
//
// The checks run in a fixed order and each can end the attempt: unknown
// email, lock window, deactivated account, then the password itself. The
// lock is checked before the password so a locked account never reveals
// whether a guess was right.
func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.TokenResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Login")
	now := s.now()

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.dummyHash != "" {
				_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
			}
			logger.WarnWithContext(ctx, "Login for unknown email").
				String("email", model.NormalizeEmail(email)).
				Log()
			return nil, apperrors.WrapError(apperrors.ErrInvalidCredentials, apperrors.ErrUserNotFound)
		}
		return nil, storageError(err)
	}

	if user.IsLocked(now) {
		logger.WarnWithContext(ctx, "Login rejected, account locked").
			Uint("target_user_id", user.ID).
			Time("lock_until", *user.LockUntil).
			Log()
		return nil, apperrors.ErrAccountLocked
	}

	if !user.IsActive {
		logger.WarnWithContext(ctx, "Login rejected, account deactivated").
			Uint("target_user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountDeactivated
	}

	ok, err := s.hasher.Verify(ctx, password, user.Password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Password verification failed to run").
			Uint("target_user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !ok {
		state, err := s.store.RecordFailedAttempt(ctx, user.ID, now, s.cfg.Lockout)
		if err != nil {
			return nil, storageError(err)
		}

		logger.WarnWithContext(ctx, "Login failed, wrong password").
			Uint("target_user_id", user.ID).
			Int("login_attempts", state.Attempts).
			Bool("locked", state.Locked(now)).
			Log()

		// The attempt that crosses the threshold reports the lock right away.
		if state.Locked(now) {
			return nil, apperrors.ErrAccountLocked
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.store.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, storageError(err)
	}
	user.ApplyAttemptState(s.cfg.Lockout.Success(user.AttemptState()))
	user.LastLogin = &now

	logger.InfoWithContext(ctx, "Login successful").
		Uint("target_user_id", user.ID).
		Log()

	return s.tokenResponse(ctx, user)
}

// RequestPasswordReset issues a reset token and delivers it by email. With
// UniformResetResponse an unknown email is indistinguishable from a known
// one.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "RequestPasswordReset")
	now := s.now()

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.InfoWithContext(ctx, "Password reset requested for unknown email").
				String("email", model.NormalizeEmail(email)).
				Log()
			if s.cfg.UniformResetResponse {
				return nil
			}
			return apperrors.ErrUserNotFound
		}
		return storageError(err)
	}

	plaintext, digest, err := security.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.store.SetResetToken(ctx, user.ID, digest, now.Add(s.cfg.ResetTokenTTL)); err != nil {
		return storageError(err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name, plaintext); err != nil {
		logger.ErrorWithContext(ctx, "Failed to deliver reset token, rolling back").
			Uint("target_user_id", user.ID).
			Err(err).
			Log()
		if clearErr := s.store.ClearResetToken(ctx, user.ID); clearErr != nil {
			logger.ErrorWithContext(ctx, "Failed to roll back reset token").
				Uint("target_user_id", user.ID).
				Err(clearErr).
				Log()
		}
		return apperrors.WrapError(apperrors.ErrDeliveryFailed, err)
	}

	logger.InfoWithContext(ctx, "Password reset token issued").
		Uint("target_user_id", user.ID).
		Log()
	return nil
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user in. The token is consumed by a conditional update, so a token can be
// redeemed at most once even under concurrent requests.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*dto.TokenResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ResetPassword")
	now := s.now()
	digest := security.DigestToken(token)

	user, err := s.store.FindByResetToken(ctx, digest, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Invalid or expired reset token presented").Log()
			return nil, apperrors.ErrInvalidOrExpiredToken
		}
		return nil, storageError(err)
	}

	hashed, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.store.CompleteReset(ctx, user.ID, digest, now, hashed); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Reset token consumed concurrently").
				Uint("target_user_id", user.ID).
				Log()
			return nil, apperrors.ErrInvalidOrExpiredToken
		}
		return nil, storageError(err)
	}
	user.Password = hashed
	user.ResetPasswordTokenHash = nil
	user.ResetPasswordExpire = nil

	logger.InfoWithContext(ctx, "Password reset completed").
		Uint("target_user_id", user.ID).
		Log()

	return s.tokenResponse(ctx, user)
}

// VerifyEmail redeems an email verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx = ctxutil.WithFunction(ctx, "service", "VerifyEmail")

	id, err := s.store.RedeemVerificationToken(ctx, security.DigestToken(token), s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithContext(ctx, "Invalid verification token presented").Log()
			return apperrors.ErrInvalidToken
		}
		return storageError(err)
	}

	logger.InfoWithContext(ctx, "Email verified").
		Uint("target_user_id", id).
		Log()
	return nil
}

// IssueVerificationToken stores a fresh verification token for userID,
// replacing any outstanding one, and returns the plaintext.
func (s *AuthService) IssueVerificationToken(ctx context.Context, userID uint) (string, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "IssueVerificationToken")

	plaintext, digest, err := security.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrInternal, err)
	}

	var expires *time.Time
	if s.cfg.VerificationTokenTTL > 0 {
		t := s.now().Add(s.cfg.VerificationTokenTTL)
		expires = &t
	}

	if err := s.store.SetVerificationToken(ctx, userID, digest, expires); err != nil {
		return "", storageError(err)
	}
	return plaintext, nil
}

// ResendVerification issues a new verification token for an unverified
// account and emails it.
func (s *AuthService) ResendVerification(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithFunction(ctx, "service", "ResendVerification")

	user, err := s.store.FindProfileByID(ctx, userID)
	if err != nil {
		return lookupError(err)
	}
	if user.IsEmailVerified {
		return apperrors.ErrEmailAlreadyVerified
	}

	plaintext, err := s.IssueVerificationToken(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := s.notifier.SendEmailVerification(ctx, user.Email, user.Name, plaintext); err != nil {
		logger.ErrorWithContext(ctx, "Failed to deliver verification token").
			Uint("target_user_id", user.ID).
			Err(err).
			Log()
		return apperrors.WrapError(apperrors.ErrDeliveryFailed, err)
	}

	logger.InfoWithContext(ctx, "Verification token issued").
		Uint("target_user_id", user.ID).
		Log()
	return nil
}

// ChangePassword replaces the password after checking the current one. Any
// outstanding reset token is invalidated and a fresh session token returned.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) (*dto.TokenResponse, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "ChangePassword")

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}

	ok, err := s.hasher.Verify(ctx, currentPassword, user.Password)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !ok {
		logger.WarnWithContext(ctx, "Password change rejected, current password incorrect").
			Uint("target_user_id", user.ID).
			Log()
		return nil, apperrors.ErrIncorrectPassword
	}

	hashed, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.store.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return nil, lookupError(err)
	}
	user.Password = hashed
	user.ResetPasswordTokenHash = nil
	user.ResetPasswordExpire = nil

	logger.InfoWithContext(ctx, "Password changed").
		Uint("target_user_id", user.ID).
		Log()

	return s.tokenResponse(ctx, user)
}

// Profile returns the account without secret fields.
func (s *AuthService) Profile(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.store.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}
	res := dto.ToUserResponse(user)
	return &res, nil
}

// Authenticate resolves a bearer token to a live, active account. It backs
// the request guard.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "Authenticate")

	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WrapError(apperrors.ErrUnauthorized, apperrors.ErrUserNotFound)
		}
		return nil, storageError(err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}

	return user, nil
}

func (s *AuthService) tokenResponse(ctx context.Context, user *model.User) (*dto.TokenResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to sign session token").
			Uint("target_user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	return &dto.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.ToUserResponse(user),
	}, nil
}

func storageError(err error) error {
	return apperrors.WrapError(apperrors.ErrStorage, err)
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	return storageError(err)
}
