package models

import (
	"time"

	"github.com/google/uuid"
)

// MFAConfig holds a user's TOTP enrollment. The secret never leaves the
// server after enrollment completes.
type MFAConfig struct {
	BaseModel
	UserID      uuid.UUID  `json:"userID" gorm:"type:uuid;not null;uniqueIndex"`
	TOTPSecret  string     `json:"-" gorm:"type:text;not null"`
	Confirmed   bool       `json:"confirmed" gorm:"not null;default:false"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

func (MFAConfig) TableName() string {
	return "mfa_configs"
}
