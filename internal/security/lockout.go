package security

import "time"

// LockoutPolicy holds the failed-login threshold and how long an account
// stays locked once it is crossed.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// AttemptState is the slice of an account the lockout rules read and write.
type AttemptState struct {
	Attempts  int
	LockUntil *time.Time
}

// IsLocked reports whether lockUntil is set and still in the future.
func IsLocked(lockUntil *time.Time, now time.Time) bool {
	return lockUntil != nil && lockUntil.After(now)
}

// Locked reports whether the state is inside a lock window at now.
func (s AttemptState) Locked(now time.Time) bool {
	return IsLocked(s.LockUntil, now)
}

// NextFailure returns the state after one more failed attempt at now.
//
// A lock that has already expired starts a fresh cycle with the counter at 1,
// not 0. Otherwise the counter is incremented and, if it reaches the
// threshold while unlocked, the lock is set to now+Duration. The counter is
// left at its value when the lock is set.
func (p LockoutPolicy) NextFailure(s AttemptState, now time.Time) AttemptState {
	if s.LockUntil != nil && !s.LockUntil.After(now) {
		return AttemptState{Attempts: 1}
	}

	next := AttemptState{Attempts: s.Attempts + 1, LockUntil: s.LockUntil}
	if next.LockUntil == nil && next.Attempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockUntil = &until
	}
	return next
}

// Success returns the state after a successful login.
func (p LockoutPolicy) Success(AttemptState) AttemptState {
	return AttemptState{}
}
