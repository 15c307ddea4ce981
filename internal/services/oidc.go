package services

import (
	"strings"
	"time"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/fileharbor/backend/pkg/utils"
	"gorm.io/gorm"
)

// DeriveRolesFromClaims maps provider group membership to application
// roles. The groups, roles, and entitlements claims are flattened; any
// configured admin group appearing in that set grants admin, otherwise the
// user role. Malformed claims never fail, they just yield user.
func DeriveRolesFromClaims(claims map[string]interface{}, adminGroups []string) []string {
	groups := make(map[string]bool)
	for _, key := range []string{"groups", "roles", "entitlements"} {
		for _, g := range claimStrings(claims, key) {
			trimmed := strings.ToLower(strings.TrimSpace(g))
			if trimmed != "" {
				groups[trimmed] = true
			}
		}
	}

	for _, g := range adminGroups {
		trimmed := strings.ToLower(strings.TrimSpace(g))
		if trimmed != "" && groups[trimmed] {
			return []string{"admin"}
		}
	}
	return []string{"user"}
}

// claimStrings reads a claim that should be an array of strings; anything
// else is treated as empty.
func claimStrings(claims map[string]interface{}, key string) []string {
	if claims == nil {
		return nil
	}
	switch v := claims[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// OIDCService syncs provider identities into the credential store, linking
// by verified email and creating users when permitted.
type OIDCService struct {
	DB *gorm.DB
}

func NewOIDCService(db *gorm.DB) *OIDCService {
	return &OIDCService{DB: db}
}

type OIDCUserInput struct {
	Issuer               string
	Sub                  string
	Email                string
	EmailVerified        bool
	Username             *string
	DisplayName          *string
	Roles                []string
	RequireEmailVerified bool
	AutoCreateUsers      bool
}

func (s *OIDCService) GetOrCreateOidcUser(input OIDCUserInput) (*models.ClientUser, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperr.Validation("Email is required from identity provider.")
	}

	if input.RequireEmailVerified && !input.EmailVerified {
		return nil, apperr.Unauthorized("Email must be verified by identity provider.")
	}

	// Existing (issuer, sub) identity: touch last_used_at and refresh the
	// profile from the latest claims.
	var method models.AuthMethod
	err := s.DB.First(&method,
		"provider_issuer = ? AND provider_sub = ? AND method_type = ?",
		input.Issuer, input.Sub, models.AuthMethodOIDC,
	).Error
	if err == nil {
		now := time.Now()
		if err := s.DB.Model(&method).Update("last_used_at", &now).Error; err != nil {
			return nil, err
		}
		if err := s.updateProfileFromClaims(method.UserID, input); err != nil {
			return nil, err
		}
		return s.loadClientUser(method.UserID)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// New identity with a known email: auto-link as an additional method.
	var user models.User
	err = s.DB.First(&user, "email = ?", email).Error
	if err == nil {
		providerName := "OIDC"
		link := models.AuthMethod{
			UserID:         user.ID,
			MethodType:     models.AuthMethodOIDC,
			ProviderIssuer: &input.Issuer,
			ProviderSub:    &input.Sub,
			ProviderName:   &providerName,
			Enabled:        true,
		}
		if err := s.DB.Create(&link).Error; err != nil {
			return nil, err
		}
		if err := s.updateProfileFromClaims(user.ID, input); err != nil {
			return nil, err
		}
		return s.loadClientUser(user.ID)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if !input.AutoCreateUsers {
		return nil, apperr.Forbidden("Profile does not exist.")
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	roleRows := make([]models.UserRole, 0, len(roles))
	for _, r := range roles {
		roleRows = append(roleRows, models.UserRole{Role: r})
	}

	providerName := "OIDC"
	newUser := models.User{
		Email:         email,
		EmailVerified: true,
		Username:      input.Username,
		DisplayName:   input.DisplayName,
		Roles:         roleRows,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newUser).Error; err != nil {
			return err
		}
		link := models.AuthMethod{
			UserID:         newUser.ID,
			MethodType:     models.AuthMethodOIDC,
			ProviderIssuer: &input.Issuer,
			ProviderSub:    &input.Sub,
			ProviderName:   &providerName,
			Enabled:        true,
		}
		return tx.Create(&link).Error
	})
	if err != nil {
		return nil, err
	}

	return s.loadClientUser(newUser.ID)
}

// updateProfileFromClaims applies coalesce semantics: a field changes only
// when the incoming claim is non-nil. A provider login always marks the
// email verified.
func (s *OIDCService) updateProfileFromClaims(userID interface{}, input OIDCUserInput) error {
	updates := map[string]interface{}{"email_verified": true}
	if input.DisplayName != nil {
		updates["display_name"] = *input.DisplayName
	}
	if input.Username != nil {
		updates["username"] = *input.Username
	}
	return s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (s *OIDCService) loadClientUser(userID interface{}) (*models.ClientUser, error) {
	var user models.User
	if err := s.DB.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return models.ToClientUser(&user), nil
}
