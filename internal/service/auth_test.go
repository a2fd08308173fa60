package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	svc      *AuthService
	store    *memStore
	notifier *recordingNotifier
	hasher   *security.Hasher
	tokens   *JWTService
	now      time.Time
}

func (f *authFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newAuthFixture(t *testing.T, mutate ...func(*AuthConfig)) *authFixture {
	t.Helper()

	f := &authFixture{
		store:    newMemStore(),
		notifier: newRecordingNotifier(),
		hasher:   security.NewHasher(bcrypt.MinCost, nil),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.tokens = NewJWTService("test-secret", 30*24*time.Hour, "test").WithClock(clock)

	cfg := AuthConfig{
		Lockout:              security.LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour},
		ResetTokenTTL:        10 * time.Minute,
		TokenBytes:           20,
		UniformResetResponse: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	f.svc = NewAuthService(f.store, f.hasher, f.tokens, f.notifier, cfg).WithClock(clock)
	return f
}

func (f *authFixture) addUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	digest, err := f.hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	return f.store.add(model.User{
		Name:     "Bob",
		Email:    email,
		Password: digest,
		Role:     "patient",
		IsActive: true,
	})
}

// countingHasher counts Verify calls on top of a real hasher.
type countingHasher struct {
	*security.Hasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.Hasher.Verify(ctx, plaintext, digest)
}

func TestLogin_UnknownEmailRunsOneVerify(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")
	hasher := &countingHasher{Hasher: f.hasher}
	svc := NewAuthService(f.store, hasher, f.tokens, f.notifier, f.svc.cfg)

	_, err := svc.Login(context.Background(), "nobody@x.com", "Secret1!")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.verifies)

	_, err = svc.Login(context.Background(), "bob@x.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, 2, hasher.verifies)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")

	res, err := f.svc.Login(context.Background(), "bob@x.com", "Secret1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, bob.ID, res.User.ID)

	id, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, id)

	stored := f.store.get(bob.ID)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, f.now, *stored.LastLogin)
	assert.Equal(t, 0, stored.LoginAttempts)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")

	_, err := f.svc.Login(context.Background(), "  BOB@X.com ", "Secret1!")
	assert.NoError(t, err)
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")

	_, unknownErr := f.svc.Login(context.Background(), "nobody@x.com", "Secret1!")
	_, wrongErr := f.svc.Login(context.Background(), "bob@x.com", "wrong")

	assert.ErrorIs(t, unknownErr, apperrors.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownErr, apperrors.ErrUserNotFound)
	assert.ErrorIs(t, wrongErr, apperrors.ErrInvalidCredentials)
	assert.Equal(t, apperrors.GetErrorMessage(wrongErr), apperrors.GetErrorMessage(unknownErr))
	assert.Equal(t, apperrors.ToHTTPStatus(wrongErr), apperrors.ToHTTPStatus(unknownErr))
}

func TestLogin_LocksOnFifthFailure(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, "bob@x.com", "wrong")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := f.svc.Login(ctx, "bob@x.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrAccountLocked)

	stored := f.store.get(bob.ID)
	assert.Equal(t, 5, stored.LoginAttempts)
	require.NotNil(t, stored.LockUntil)
	assert.Equal(t, f.now.Add(2*time.Hour), *stored.LockUntil)

	// Correct password inside the lock window is still rejected.
	f.advance(time.Hour)
	_, err = f.svc.Login(ctx, "bob@x.com", "Secret1!")
	assert.ErrorIs(t, err, apperrors.ErrAccountLocked)
	assert.Equal(t, 5, f.store.get(bob.ID).LoginAttempts, "locked attempts are not counted")
}

func TestLogin_AmnestyAfterLockExpires(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "bob@x.com", "wrong")
	}

	f.advance(2*time.Hour + time.Second)
	_, err := f.svc.Login(ctx, "bob@x.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	stored := f.store.get(bob.ID)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = f.svc.Login(ctx, "bob@x.com", "wrong")
	}
	_, err := f.svc.Login(ctx, "bob@x.com", "Secret1!")
	require.NoError(t, err)

	stored := f.store.get(bob.ID)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)

	// A fresh run of four failures does not lock.
	for i := 0; i < 4; i++ {
		_, err = f.svc.Login(ctx, "bob@x.com", "wrong")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}
}

func TestLogin_SuccessAfterExpiredLockClearsIt(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "bob@x.com", "wrong")
	}
	f.advance(3 * time.Hour)

	_, err := f.svc.Login(ctx, "bob@x.com", "Secret1!")
	require.NoError(t, err)

	stored := f.store.get(bob.ID)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestLogin_DeactivatedAfterLockCheck(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	f.store.update(bob.ID, func(u *model.User) bool { u.IsActive = false; return true })

	_, err := f.svc.Login(context.Background(), "bob@x.com", "Secret1!")
	assert.ErrorIs(t, err, apperrors.ErrAccountDeactivated)

	until := f.now.Add(time.Hour)
	f.store.update(bob.ID, func(u *model.User) bool { u.LockUntil = &until; return true })

	_, err = f.svc.Login(context.Background(), "bob@x.com", "Secret1!")
	assert.ErrorIs(t, err, apperrors.ErrAccountLocked)
}

func TestLogin_ConcurrentFailuresAreNotLost(t *testing.T) {
	f := newAuthFixture(t, func(c *AuthConfig) { c.Lockout.Threshold = 100 })
	bob := f.addUser(t, "bob@x.com", "Secret1!")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Login(context.Background(), "bob@x.com", "wrong")
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, f.store.get(bob.ID).LoginAttempts)
}

func TestLogin_StorageFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.store.failOn["FindByEmail"] = errStoreDown

	_, err := f.svc.Login(context.Background(), "bob@x.com", "Secret1!")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Equal(t, "internal server error", apperrors.GetErrorMessage(err))
}

func TestPasswordReset_Scenario(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	token := f.notifier.resets["bob@x.com"]
	require.NotEmpty(t, token)

	stored := f.store.get(bob.ID)
	require.NotNil(t, stored.ResetPasswordTokenHash)
	assert.NotEqual(t, token, *stored.ResetPasswordTokenHash, "only the digest is stored")
	assert.Equal(t, security.DigestToken(token), *stored.ResetPasswordTokenHash)

	f.advance(9 * time.Minute)
	res, err := f.svc.ResetPassword(ctx, token, "NewPass1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	stored = f.store.get(bob.ID)
	assert.Nil(t, stored.ResetPasswordTokenHash)
	assert.Nil(t, stored.ResetPasswordExpire)
	ok, err := f.hasher.Verify(ctx, "NewPass1!", stored.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	f.advance(30 * time.Second)
	_, err = f.svc.ResetPassword(ctx, token, "NewPass1!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
}

func TestPasswordReset_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	token := f.notifier.resets["bob@x.com"]

	f.advance(10 * time.Minute)
	_, err := f.svc.ResetPassword(ctx, token, "NewPass1!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
}

func TestPasswordReset_NewTokenInvalidatesOld(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	first := f.notifier.resets["bob@x.com"]
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	second := f.notifier.resets["bob@x.com"]
	require.NotEqual(t, first, second)

	_, err := f.svc.ResetPassword(ctx, first, "NewPass1!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)

	_, err = f.svc.ResetPassword(ctx, second, "NewPass1!")
	assert.NoError(t, err)
}

func TestPasswordReset_ConcurrentRedeemSucceedsOnce(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	token := f.notifier.resets["bob@x.com"]

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ResetPassword(ctx, token, "NewPass1!"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	t.Run("uniform response", func(t *testing.T) {
		f := newAuthFixture(t)
		assert.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@x.com"))
		assert.Empty(t, f.notifier.resets)
	})

	t.Run("distinct response", func(t *testing.T) {
		f := newAuthFixture(t, func(c *AuthConfig) { c.UniformResetResponse = false })
		err := f.svc.RequestPasswordReset(context.Background(), "ghost@x.com")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestRequestPasswordReset_DeliveryFailureRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	f.notifier.err = errors.New("smtp: 550")

	err := f.svc.RequestPasswordReset(context.Background(), "bob@x.com")
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)

	stored := f.store.get(bob.ID)
	assert.Nil(t, stored.ResetPasswordTokenHash)
	assert.Nil(t, stored.ResetPasswordExpire)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, bob.ID))
	token := f.notifier.verifications["bob@x.com"]
	require.NotEmpty(t, token)
	assert.Nil(t, f.store.get(bob.ID).EmailVerificationExpire, "no expiry by default")

	// Far in the future still works when no TTL is configured.
	f.advance(365 * 24 * time.Hour)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	stored := f.store.get(bob.ID)
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerificationTokenHash)

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, token), apperrors.ErrInvalidToken)
	assert.ErrorIs(t, f.svc.ResendVerification(ctx, bob.ID), apperrors.ErrEmailAlreadyVerified)
}

func TestVerifyEmail_ResendInvalidatesOldToken(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, bob.ID))
	old := f.notifier.verifications["bob@x.com"]
	require.NoError(t, f.svc.ResendVerification(ctx, bob.ID))

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, old), apperrors.ErrInvalidToken)
	assert.NoError(t, f.svc.VerifyEmail(ctx, f.notifier.verifications["bob@x.com"]))
}

func TestVerifyEmail_WithTTL(t *testing.T) {
	f := newAuthFixture(t, func(c *AuthConfig) { c.VerificationTokenTTL = 24 * time.Hour })
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, bob.ID))
	token := f.notifier.verifications["bob@x.com"]

	f.advance(24 * time.Hour)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, token), apperrors.ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@x.com"))
	resetToken := f.notifier.resets["bob@x.com"]

	_, err := f.svc.ChangePassword(ctx, bob.ID, "wrong", "Changed1!")
	assert.ErrorIs(t, err, apperrors.ErrIncorrectPassword)

	res, err := f.svc.ChangePassword(ctx, bob.ID, "Secret1!", "Changed1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(ctx, "bob@x.com", "Changed1!")
	assert.NoError(t, err)

	// The outstanding reset token died with the password change.
	_, err = f.svc.ResetPassword(ctx, resetToken, "Another1!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")
	ctx := context.Background()

	token, _, err := f.tokens.Issue(bob.ID)
	require.NoError(t, err)

	user, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, user.ID)
	assert.Empty(t, user.Password)

	ghost, _, err := f.tokens.Issue(999)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	f.store.update(bob.ID, func(u *model.User) bool { u.IsActive = false; return true })
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrAccountDeactivated)

	f.advance(31 * 24 * time.Hour)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestProfile(t *testing.T) {
	f := newAuthFixture(t)
	bob := f.addUser(t, "bob@x.com", "Secret1!")

	res, err := f.svc.Profile(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", res.Email)

	_, err = f.svc.Profile(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
