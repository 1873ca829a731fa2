package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	"github.com/lettermill/lettermill/internal/auth/password"
	"github.com/lettermill/lettermill/internal/config"
	"gorm.io/gorm"
)

const (
	defaultAdminLogin    = "admin"
	defaultAdminPassword = "admin"
)

// EnsureAdmin seeds the default admin user so a fresh install is usable
// without a signup flow.
func EnsureAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	login := strings.ToLower(strings.TrimSpace(cfg.SeedAdminLogin))
	if login == "" {
		login = defaultAdminLogin
	}
	plaintext := cfg.SeedAdminPassword
	if plaintext == "" {
		plaintext = defaultAdminPassword
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user authdomain.User
		err := tx.WithContext(ctx).
			Where("login = ?", login).
			First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := password.Hash(plaintext)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		user = authdomain.User{
			ID:           node.Generate(),
			Login:        login,
			Email:        strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail)),
			PasswordHash: &hashed,
			IsDefault:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
