package model

import (
	"strings"
	"time"

	"github.com/Payphone-Digital/account-security/internal/security"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name     string `gorm:"column:name;not null"`
	Email    string `gorm:"column:email;uniqueIndex;not null"`
	Password string `gorm:"column:password;not null" json:"-"`
	Role     string `gorm:"column:role;type:varchar(16);not null;default:patient"`
	IsActive bool   `gorm:"column:is_active;not null;default:true"`

	LoginAttempts int        `gorm:"column:login_attempts;not null;default:0"`
	LockUntil     *time.Time `gorm:"column:lock_until;default:null"`
	LastLogin     *time.Time `gorm:"column:last_login;default:null"`

	ResetPasswordTokenHash *string    `gorm:"column:reset_password_token_hash;default:null;index:idx_users_reset_token,where:reset_password_token_hash IS NOT NULL" json:"-"`
	ResetPasswordExpire    *time.Time `gorm:"column:reset_password_expire;default:null" json:"-"`

	EmailVerificationTokenHash *string    `gorm:"column:email_verification_token_hash;default:null;index:idx_users_verification_token,where:email_verification_token_hash IS NOT NULL" json:"-"`
	EmailVerificationExpire    *time.Time `gorm:"column:email_verification_expire;default:null" json:"-"`
	IsEmailVerified            bool       `gorm:"column:is_email_verified;not null;default:false"`
}

// IsLocked reports whether the account is inside a lock window at now.
func (u *User) IsLocked(now time.Time) bool {
	return security.IsLocked(u.LockUntil, now)
}

func (u *User) AttemptState() security.AttemptState {
	return security.AttemptState{Attempts: u.LoginAttempts, LockUntil: u.LockUntil}
}

// ApplyAttemptState copies lockout fields back after a store update.
func (u *User) ApplyAttemptState(s security.AttemptState) {
	u.LoginAttempts = s.Attempts
	u.LockUntil = s.LockUntil
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// NormalizeEmail is the canonical form used for storage, lookup and rate
// limit keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
