package services

import (
	"strings"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService covers user queries and management: listing, projections,
// profile and role updates, deletion with the last-admin guard.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

func (s *UserService) CountUsers() (int64, error) {
	var count int64
	err := s.DB.Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *UserService) CountAdmins() (int64, error) {
	var count int64
	err := s.DB.Model(&models.UserRole{}).Where("role = ?", models.RoleAdmin).
		Distinct("user_id").Count(&count).Error
	return count, err
}

func (s *UserService) GetByID(id uuid.UUID) (*models.ClientUser, error) {
	var user models.User
	err := s.DB.Preload("Roles").First(&user, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.ToClientUser(&user), nil
}

func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.DB.Preload("Roles").First(&user, "email = ?", utils.NormalizeEmail(email)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetUserAuthMethods(userID uuid.UUID) ([]models.AuthMethod, error) {
	var methods []models.AuthMethod
	err := s.DB.Where("user_id = ? AND enabled = ?", userID, true).Find(&methods).Error
	return methods, err
}

// ManagedUser is the admin listing shape: the client projection plus a
// summary of enabled auth methods.
type ManagedUser struct {
	models.ClientUser
	AuthMethods []models.AuthMethodSummary `json:"authMethods"`
}

func (s *UserService) ListUsers(p utils.Pagination) ([]ManagedUser, int64, error) {
	var total int64
	if err := s.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	query := utils.ApplyPagination(s.DB.Preload("Roles").Order("created_at ASC"), p)
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, err
	}

	userIDs := make([]uuid.UUID, 0, len(users))
	for i := range users {
		userIDs = append(userIDs, users[i].ID)
	}

	var methods []models.AuthMethod
	if len(userIDs) > 0 {
		if err := s.DB.Where("enabled = ? AND user_id IN ?", true, userIDs).Find(&methods).Error; err != nil {
			return nil, 0, err
		}
	}
	methodsByUser := map[uuid.UUID][]models.AuthMethodSummary{}
	for _, m := range methods {
		methodsByUser[m.UserID] = append(methodsByUser[m.UserID], models.AuthMethodSummary{
			Method:   m.MethodType,
			Provider: m.ProviderName,
		})
	}

	out := make([]ManagedUser, 0, len(users))
	for i := range users {
		summaries := methodsByUser[users[i].ID]
		if summaries == nil {
			summaries = []models.AuthMethodSummary{}
		}
		out = append(out, ManagedUser{
			ClientUser:  *models.ToClientUser(&users[i]),
			AuthMethods: summaries,
		})
	}
	return out, total, nil
}

func (s *UserService) ListShareableUsers(excludeUserID string) ([]models.ShareableUser, error) {
	query := s.DB.Model(&models.User{}).Order("display_name ASC, email ASC")
	if excludeUserID != "" {
		query = query.Where("id != ?", excludeUserID)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	out := make([]models.ShareableUser, 0, len(users))
	for i := range users {
		out = append(out, *models.ToShareableUser(&users[i]))
	}
	return out, nil
}

type UpdateProfileInput struct {
	Email       *string
	Username    *string
	DisplayName *string
}

func (s *UserService) UpdateUserProfile(userID uuid.UUID, input UpdateProfileInput) (*models.ClientUser, error) {
	var user models.User
	err := s.DB.Preload("Roles").First(&user, "id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("User not found.")
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if input.Email != nil {
		email := utils.NormalizeEmail(*input.Email)
		if email == "" {
			return nil, apperr.Validation("Email is required.")
		}
		var existing models.User
		err := s.DB.First(&existing, "email = ? AND id != ?", email, userID).Error
		if err == nil {
			return nil, apperr.Conflict("Email already in use.")
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		updates["email"] = email
	}

	if input.Username != nil {
		if trimmed := trimToNil(*input.Username); trimmed != nil {
			updates["username"] = *trimmed
		} else {
			updates["username"] = nil
		}
	}

	if input.DisplayName != nil {
		if trimmed := trimToNil(*input.DisplayName); trimmed != nil {
			updates["display_name"] = *trimmed
		} else {
			updates["display_name"] = nil
		}
	}

	if len(updates) == 0 {
		return models.ToClientUser(&user), nil
	}

	if err := s.DB.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.reload(userID)
}

// UpdateUserRoles replaces the role set. Demoting the last admin is not
// guarded here; only deletion enforces the last-admin invariant.
func (s *UserService) UpdateUserRoles(userID uuid.UUID, roles []string) (*models.ClientUser, error) {
	cleaned := make([]string, 0, len(roles))
	seen := map[string]bool{}
	for _, r := range roles {
		if trimmed := trimToNil(r); trimmed != nil && !seen[*trimmed] {
			seen[*trimmed] = true
			cleaned = append(cleaned, *trimmed)
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		for _, role := range cleaned {
			if err := tx.Create(&models.UserRole{UserID: userID, Role: role}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(userID)
}

// DeleteUser removes a user and every associated credential. Removing the
// last remaining admin is refused.
func (s *UserService) DeleteUser(userID uuid.UUID) (bool, error) {
	var user models.User
	err := s.DB.Preload("Roles").First(&user, "id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if user.IsAdmin() {
		admins, err := s.CountAdmins()
		if err != nil {
			return false, err
		}
		if admins <= 1 {
			return false, apperr.Validation("Cannot remove the last admin.")
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.AuthMethod{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.MFAConfig{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserVolume{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.ShareRecipient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) reload(userID uuid.UUID) (*models.ClientUser, error) {
	var user models.User
	if err := s.DB.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return models.ToClientUser(&user), nil
}

func trimToNil(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
