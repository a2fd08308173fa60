package database

import (
	"context"
	"errors"

	"github.com/Payphone-Digital/account-security/config"
	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/internal/model"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"gorm.io/gorm"
)

// PasswordHasher is the subset of security.Hasher seeding needs.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// SeedAdmin creates the configured admin account if it does not exist yet.
// Nothing is seeded when no admin email or password is configured.
func SeedAdmin(ctx context.Context, db *gorm.DB, cfg config.SeedConfig, hasher PasswordHasher) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := model.NormalizeEmail(cfg.AdminEmail)

	var existing model.User
	err := db.WithContext(ctx).Unscoped().Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := hasher.Hash(ctx, cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := model.User{
		Name:            cfg.AdminName,
		Email:           email,
		Password:        hashed,
		Role:            constants.RoleAdmin,
		IsActive:        true,
		IsEmailVerified: true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}

	logger.InfoWithContext(ctx, "Seeded admin account").
		String("email", email).
		Log()
	return nil
}
