package services

import (
	"testing"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func mustParseUUID(t *testing.T, value string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("invalid uuid %q: %v", value, err)
	}
	return id
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.AuthMethod{},
		&models.AuthLock{},
		&models.MFAConfig{},
		&models.AccessRule{},
		&models.UserVolume{},
		&models.Share{},
		&models.ShareRecipient{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string, roles ...string) *models.User {
	t.Helper()

	if len(roles) == 0 {
		roles = []string{"user"}
	}
	roleRows := make([]models.UserRole, 0, len(roles))
	for _, r := range roles {
		roleRows = append(roleRows, models.UserRole{Role: r})
	}

	user := &models.User{
		Email: utils.NormalizeEmail(email),
		Roles: roleRows,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	return user
}

func createTestLocalUser(t *testing.T, db *gorm.DB, email, password string, roles ...string) *models.User {
	t.Helper()

	user := createTestUser(t, db, email, roles...)
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}
	method := models.AuthMethod{
		UserID:       user.ID,
		MethodType:   models.AuthMethodLocal,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := db.Create(&method).Error; err != nil {
		t.Fatalf("failed creating local auth method: %v", err)
	}
	return user
}
