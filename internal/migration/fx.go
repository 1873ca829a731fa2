package migration

import (
	authdomain "github.com/lettermill/lettermill/internal/auth/domain"
	"github.com/lettermill/lettermill/internal/config"
	emaildomain "github.com/lettermill/lettermill/internal/email/domain"
	projectdomain "github.com/lettermill/lettermill/internal/project/domain"
	"github.com/lettermill/lettermill/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			err := conn.AutoMigrate(
				&authdomain.User{},
				&authdomain.Session{},
				&projectdomain.Project{},
				&projectdomain.Heading{},
				&emaildomain.Email{},
				&emaildomain.Attachment{},
			)
			if err != nil {
				return err
			}
		}

		return seed.EnsureAdmin(conn, cfg)
	}),
)
