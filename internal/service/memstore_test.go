package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/internal/security"
	"gorm.io/gorm"
)

// memStore is an in-memory UserStore. Every method holds the lock for its
// whole read-modify-write, mirroring the single-statement updates of the
// SQL repository.
type memStore struct {
	mu     sync.Mutex
	users  map[uint]*model.User
	nextID uint
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uint]*model.User), nextID: 1, failOn: make(map[string]error)}
}

func (m *memStore) add(u model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID
	u.Email = model.NormalizeEmail(u.Email)
	m.nextID++
	m.users[u.ID] = &u
	return m.snapshotLocked(u.ID)
}

func (m *memStore) get(id uint) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(id)
}

func (m *memStore) snapshotLocked(id uint) *model.User {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *memStore) fail(method string) error {
	return m.failOn[method]
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindByEmail"); err != nil {
		return nil, err
	}
	email = model.NormalizeEmail(email)
	for id, u := range m.users {
		if u.Email == email {
			return m.snapshotLocked(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) FindByID(_ context.Context, id uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.snapshotLocked(id); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) FindProfileByID(ctx context.Context, id uint) (*model.User, error) {
	u, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Password = ""
	u.ResetPasswordTokenHash = nil
	u.EmailVerificationTokenHash = nil
	return u, nil
}

func (m *memStore) RecordFailedAttempt(_ context.Context, id uint, now time.Time, policy security.LockoutPolicy) (security.AttemptState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return security.AttemptState{}, gorm.ErrRecordNotFound
	}
	next := policy.NextFailure(u.AttemptState(), now)
	u.ApplyAttemptState(next)
	return next, nil
}

func (m *memStore) RecordLoginSuccess(_ context.Context, id uint, now time.Time) error {
	return m.update(id, func(u *model.User) bool {
		u.LoginAttempts = 0
		u.LockUntil = nil
		u.LastLogin = &now
		return true
	})
}

func (m *memStore) SetResetToken(_ context.Context, id uint, digest string, expires time.Time) error {
	if err := m.fail("SetResetToken"); err != nil {
		return err
	}
	return m.update(id, func(u *model.User) bool {
		u.ResetPasswordTokenHash = &digest
		u.ResetPasswordExpire = &expires
		return true
	})
}

func (m *memStore) ClearResetToken(_ context.Context, id uint) error {
	return m.update(id, func(u *model.User) bool {
		u.ResetPasswordTokenHash = nil
		u.ResetPasswordExpire = nil
		return true
	})
}

func (m *memStore) FindByResetToken(_ context.Context, digest string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if resetMatches(u, digest, now) {
			return m.snapshotLocked(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) CompleteReset(_ context.Context, id uint, digest string, now time.Time, passwordHash string) error {
	return m.update(id, func(u *model.User) bool {
		if !resetMatches(u, digest, now) {
			return false
		}
		u.Password = passwordHash
		u.ResetPasswordTokenHash = nil
		u.ResetPasswordExpire = nil
		return true
	})
}

func (m *memStore) SetVerificationToken(_ context.Context, id uint, digest string, expires *time.Time) error {
	return m.update(id, func(u *model.User) bool {
		u.EmailVerificationTokenHash = &digest
		u.EmailVerificationExpire = expires
		return true
	})
}

func (m *memStore) RedeemVerificationToken(_ context.Context, digest string, now time.Time) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.EmailVerificationTokenHash == nil || *u.EmailVerificationTokenHash != digest {
			continue
		}
		if u.EmailVerificationExpire != nil && !u.EmailVerificationExpire.After(now) {
			continue
		}
		u.IsEmailVerified = true
		u.EmailVerificationTokenHash = nil
		u.EmailVerificationExpire = nil
		return id, nil
	}
	return 0, gorm.ErrRecordNotFound
}

func (m *memStore) UpdatePassword(_ context.Context, id uint, passwordHash string) error {
	return m.update(id, func(u *model.User) bool {
		u.Password = passwordHash
		u.ResetPasswordTokenHash = nil
		u.ResetPasswordExpire = nil
		return true
	})
}

func (m *memStore) update(id uint, fn func(u *model.User) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !fn(u) {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func resetMatches(u *model.User, digest string, now time.Time) bool {
	return u.ResetPasswordTokenHash != nil && *u.ResetPasswordTokenHash == digest &&
		u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now)
}

// recordingNotifier captures delivered tokens so tests can redeem them.
type recordingNotifier struct {
	mu            sync.Mutex
	resets        map[string]string
	verifications map[string]string
	err           error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{resets: map[string]string{}, verifications: map[string]string{}}
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets[to] = token
	return nil
}

func (n *recordingNotifier) SendEmailVerification(_ context.Context, to, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.verifications[to] = token
	return nil
}

var errStoreDown = errors.New("connection refused")
