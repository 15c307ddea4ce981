package services

import (
	"time"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LocalAuthService owns password credentials: creation, verification,
// change, and the privileged admin reset path. The lockout guard gates the
// login path only.
type LocalAuthService struct {
	DB      *gorm.DB
	Lockout *LockoutService
}

func NewLocalAuthService(db *gorm.DB, lockout *LockoutService) *LocalAuthService {
	return &LocalAuthService{DB: db, Lockout: lockout}
}

type CreateLocalUserInput struct {
	Email       string
	Password    string
	Username    *string
	DisplayName *string
	Roles       []string
}

func (s *LocalAuthService) CreateLocalUser(input CreateLocalUserInput) (*models.ClientUser, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperr.Validation("Email is required.")
	}
	if input.Password == "" {
		return nil, apperr.Validation("Password is required.")
	}

	var existing models.User
	err := s.DB.First(&existing, "email = ?", email).Error
	if err == nil {
		return nil, apperr.Conflict("Email already in use.")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	roleRows := make([]models.UserRole, 0, len(roles))
	for _, r := range roles {
		roleRows = append(roleRows, models.UserRole{Role: r})
	}

	user := models.User{
		Email:       email,
		Username:    input.Username,
		DisplayName: input.DisplayName,
		Roles:       roleRows,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
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
	})
	if err != nil {
		return nil, err
	}

	return models.ToClientUser(&user), nil
}

// AttemptLocalLogin verifies a password. A mismatch or unknown email is a
// nil result, not an error; only lockout itself raises a condition, and the
// lock is checked before the password is verified.
func (s *LocalAuthService) AttemptLocalLogin(email, password string) (*models.ClientUser, error) {
	key := utils.NormalizeEmail(email)
	if key == "" {
		return nil, apperr.Validation("Email is required.")
	}

	locked, err := s.Lockout.IsLocked(key)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, apperr.Locked("Too many failed attempts. Try again later.")
	}

	var user models.User
	err = s.DB.Preload("Roles").First(&user, "email = ?", key).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var method models.AuthMethod
	methodErr := gorm.ErrRecordNotFound
	if err == nil {
		methodErr = s.DB.First(&method,
			"user_id = ? AND method_type = ? AND enabled = ?",
			user.ID, models.AuthMethodLocal, true,
		).Error
	}

	if methodErr != nil || !utils.CheckPassword(password, method.PasswordHash) {
		if methodErr != nil && methodErr != gorm.ErrRecordNotFound {
			return nil, methodErr
		}
		if err := s.Lockout.IncrementFailedAttempts(key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.Lockout.ClearLock(key); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.DB.Model(&method).Update("last_used_at", &now).Error; err != nil {
		return nil, err
	}

	return models.ToClientUser(&user), nil
}

func (s *LocalAuthService) ChangeLocalPassword(userID uuid.UUID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("New password is required.")
	}

	var method models.AuthMethod
	err := s.DB.First(&method,
		"user_id = ? AND method_type = ?", userID, models.AuthMethodLocal,
	).Error
	if err == gorm.ErrRecordNotFound {
		return apperr.NotFound("No local password configured.")
	}
	if err != nil {
		return err
	}

	if !utils.CheckPassword(currentPassword, method.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect.")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.DB.Model(&method).Update("password_hash", hash).Error
}

// SetLocalPasswordAdmin resets a user's password without a current-password
// check. Used by admin resets and environment-driven bootstrap.
func (s *LocalAuthService) SetLocalPasswordAdmin(userID uuid.UUID, newPassword string) error {
	if newPassword == "" {
		return apperr.Validation("Password is required.")
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	var method models.AuthMethod
	err = s.DB.First(&method,
		"user_id = ? AND method_type = ?", userID, models.AuthMethodLocal,
	).Error
	if err == gorm.ErrRecordNotFound {
		method = models.AuthMethod{
			UserID:       userID,
			MethodType:   models.AuthMethodLocal,
			PasswordHash: hash,
			Enabled:      true,
		}
		return s.DB.Create(&method).Error
	}
	if err != nil {
		return err
	}
	return s.DB.Model(&method).Update("password_hash", hash).Error
}

// AddLocalPassword attaches a password to a user that previously only had
// OIDC sign-in.
func (s *LocalAuthService) AddLocalPassword(userID uuid.UUID, password string) error {
	if password == "" {
		return apperr.Validation("Password is required.")
	}

	var existing models.AuthMethod
	err := s.DB.First(&existing,
		"user_id = ? AND method_type = ?", userID, models.AuthMethodLocal,
	).Error
	if err == nil {
		return apperr.Conflict("Local password already configured.")
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	method := models.AuthMethod{
		UserID:       userID,
		MethodType:   models.AuthMethodLocal,
		PasswordHash: hash,
		Enabled:      true,
	}
	return s.DB.Create(&method).Error
}
