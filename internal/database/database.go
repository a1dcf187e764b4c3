package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/satecha/satecha/internal/config"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig, auth config.AuthConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db, auth); err != nil {
		return nil, err
	}

	return db, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.OTPCode{},
		&models.RefreshToken{},
		&models.AuditLog{},
	)
}

// seedAdminUser creates the first administrator on an empty database when
// ADMIN_PASSWORD is configured.
func seedAdminUser(db *gorm.DB, auth config.AuthConfig) error {
	if auth.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(auth.AdminPassword)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		admin := models.User{
			Email:        auth.AdminEmail,
			PasswordHash: hash,
			Metadata:     map[string]interface{}{"username": "admin"},
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		profile := models.Profile{
			UserID:   admin.ID,
			Username: "admin",
			Role:     models.UserRoleAdmin,
			Language: "en",
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		logger.Info("admin_user_seeded", map[string]interface{}{
			"user_id": admin.ID.String(),
			"email":   admin.Email,
		})
		return nil
	})
}
