package database

import (
	"fmt"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.AuthMethod{},
		&models.AuthLock{},
		&models.AccessRule{},
		&models.UserVolume{},
		&models.Share{},
		&models.ShareRecipient{},
		&models.MFAConfig{},
	)
}

// BootstrapAdmin creates or resets the environment-driven admin account.
// A fresh install gets an admin user with a local password; an existing
// account gets its password reset, which doubles as a recovery path.
func BootstrapAdmin(db *gorm.DB, cfg config.AuthConfig) error {
	email := utils.NormalizeEmail(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	var user models.User
	err = db.Preload("Roles").First(&user, "email = ?", email).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{
			Email:         email,
			EmailVerified: true,
			Roles:         []models.UserRole{{Role: models.RoleAdmin}},
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			method := models.AuthMethod{
				UserID:       user.ID,
				MethodType:   models.AuthMethodLocal,
				PasswordHash: hash,
				Enabled:      true,
			}
			return tx.Create(&method).Error
		}); err != nil {
			return err
		}
		logger.Info("admin_bootstrap_created", map[string]interface{}{"email": email})
		return nil
	}
	if err != nil {
		return err
	}

	var method models.AuthMethod
	err = db.First(&method, "user_id = ? AND method_type = ?", user.ID, models.AuthMethodLocal).Error
	if err == gorm.ErrRecordNotFound {
		method = models.AuthMethod{
			UserID:       user.ID,
			MethodType:   models.AuthMethodLocal,
			PasswordHash: hash,
			Enabled:      true,
		}
		if err := db.Create(&method).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		if err := db.Model(&method).Update("password_hash", hash).Error; err != nil {
			return err
		}
	}

	logger.Info("admin_bootstrap_reset", map[string]interface{}{"email": email})
	return nil
}
