package models

import (
	"time"

	"github.com/google/uuid"
)

type AuthMethodType string

const (
	AuthMethodLocal AuthMethodType = "local"
	AuthMethodOIDC  AuthMethodType = "oidc"
)

// AuthMethod is one credential mechanism attached to a user: at most one
// local row per user, any number of oidc rows keyed by (issuer, sub).
type AuthMethod struct {
	BaseModel
	UserID         uuid.UUID      `json:"userID" gorm:"type:uuid;not null;index"`
	MethodType     AuthMethodType `json:"methodType" gorm:"type:varchar(20);not null;index"`
	PasswordHash   string         `json:"-" gorm:"type:text"`
	ProviderIssuer *string        `json:"providerIssuer,omitempty" gorm:"type:text;uniqueIndex:idx_auth_methods_issuer_sub"`
	ProviderSub    *string        `json:"providerSub,omitempty" gorm:"type:text;uniqueIndex:idx_auth_methods_issuer_sub"`
	ProviderName   *string        `json:"providerName,omitempty" gorm:"type:varchar(100)"`
	Enabled        bool           `json:"enabled" gorm:"not null;default:true"`
	LastUsedAt     *time.Time     `json:"lastUsedAt,omitempty"`
}

func (AuthMethod) TableName() string {
	return "auth_methods"
}

// AuthMethodSummary is the shape user listings expose for each method.
type AuthMethodSummary struct {
	Method   AuthMethodType `json:"method"`
	Provider *string        `json:"provider,omitempty"`
}
