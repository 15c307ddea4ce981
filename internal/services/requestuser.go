package services

import (
	"strings"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IdentityKind string

const (
	// IdentityPersisted is backed by a user row; its id is a valid foreign key.
	IdentityPersisted IdentityKind = "persisted"
	// IdentityEphemeral is derived from live OIDC claims before any database
	// sync exists; its id must never be persisted.
	IdentityEphemeral IdentityKind = "ephemeral"
)

// Identity is the canonical caller representation every authorization check
// consumes.
type Identity struct {
	models.ClientUser
	Provider   string       `json:"provider,omitempty"`
	OIDCIssuer string       `json:"oidcIssuer,omitempty"`
	Kind       IdentityKind `json:"-"`
}

func (i *Identity) IsEphemeral() bool {
	return i != nil && i.Kind == IdentityEphemeral
}

// OIDCSession is the view of an authenticated provider session supplied by
// the surrounding middleware. The core only reads it.
type OIDCSession interface {
	IsAuthenticated() bool
	Claims() map[string]interface{}
}

// RequestAuth carries everything an inbound request may present:
// a pre-populated identity (authentication disabled), a local session
// user id, or an OIDC session.
type RequestAuth struct {
	Synthetic   *Identity
	LocalUserID *uuid.UUID
	OIDC        OIDCSession
}

// RequestUserService resolves a request to the canonical identity, or nil
// when no identity applies. Precedence: synthetic, then local session,
// then OIDC session.
type RequestUserService struct {
	DB   *gorm.DB
	OIDC config.OIDCConfig
}

func NewRequestUserService(db *gorm.DB, oidcCfg config.OIDCConfig) *RequestUserService {
	return &RequestUserService{DB: db, OIDC: oidcCfg}
}

func (s *RequestUserService) Resolve(auth RequestAuth) (*Identity, error) {
	// A synthetic identity with an empty id is treated as no identity; it
	// never short-circuits the remaining sources.
	if auth.Synthetic != nil && auth.Synthetic.ID != "" {
		return auth.Synthetic, nil
	}

	if auth.LocalUserID != nil {
		var user models.User
		err := s.DB.Preload("Roles").First(&user, "id = ?", *auth.LocalUserID).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &Identity{
			ClientUser: *models.ToClientUser(&user),
			Provider:   "local",
			Kind:       IdentityPersisted,
		}, nil
	}

	if auth.OIDC != nil && auth.OIDC.IsAuthenticated() {
		claims := auth.OIDC.Claims()
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return nil, nil
		}
		return s.resolveOIDC(sub, claims)
	}

	return nil, nil
}

func (s *RequestUserService) resolveOIDC(sub string, claims map[string]interface{}) (*Identity, error) {
	issuer := s.OIDC.Issuer
	if issuer == "" {
		return nil, nil
	}

	var method models.AuthMethod
	err := s.DB.First(&method,
		"provider_issuer = ? AND provider_sub = ? AND method_type = ?",
		issuer, sub, models.AuthMethodOIDC,
	).Error
	if err == nil {
		var user models.User
		if err := s.DB.Preload("Roles").First(&user, "id = ?", method.UserID).Error; err != nil {
			return nil, err
		}
		identity := &Identity{
			ClientUser: *models.ToClientUser(&user),
			Provider:   "oidc",
			OIDCIssuer: issuer,
			Kind:       IdentityPersisted,
		}
		if identity.AvatarURL == nil {
			if picture := claimString(claims, "picture"); picture != "" {
				identity.AvatarURL = &picture
			}
		}
		return identity, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// Unknown subject. Without auto-create there is no synthetic fallback:
	// claims alone must not mint an identity.
	if !s.OIDC.AutoCreateUsers {
		return nil, nil
	}

	return s.ephemeralIdentity(sub, claims), nil
}

// ephemeralIdentity builds the not-yet-synced identity straight from
// claims. The oidc: id prefix marks it as unusable as a foreign key.
func (s *RequestUserService) ephemeralIdentity(sub string, claims map[string]interface{}) *Identity {
	email := ""
	if raw := claimString(claims, "email"); raw != "" {
		email = strings.ToLower(strings.TrimSpace(raw))
	}

	username := claimString(claims, "preferred_username")
	if username == "" {
		username = claimString(claims, "username")
	}
	if username == "" {
		username = email
	}
	if username == "" {
		username = sub
	}

	displayName := claimString(claims, "name")
	if displayName == "" {
		displayName = username
	}

	emailVerified, _ := claims["email_verified"].(bool)
	roles := DeriveRolesFromClaims(claims, s.OIDC.AdminGroups)

	identity := &Identity{
		ClientUser: models.ClientUser{
			ID:            "oidc:" + sub,
			Email:         email,
			EmailVerified: emailVerified,
			Username:      &username,
			DisplayName:   &displayName,
			Roles:         roles,
		},
		Provider:   "oidc",
		OIDCIssuer: s.OIDC.Issuer,
		Kind:       IdentityEphemeral,
	}
	if picture := claimString(claims, "picture"); picture != "" {
		identity.AvatarURL = &picture
	}
	return identity
}

func claimString(claims map[string]interface{}, key string) string {
	if claims == nil {
		return ""
	}
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}
