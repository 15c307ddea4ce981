package models

import (
	"time"

	"github.com/google/uuid"
)

type SourceSpace string

const (
	SourceSpaceVolume     SourceSpace = "volume"
	SourceSpaceUserVolume SourceSpace = "user_volume"
)

type SharingType string

const (
	SharingTypeAnyone SharingType = "anyone"
	SharingTypeUsers  SharingType = "users"
)

// Share publishes a path under an opaque token. The access mode may never
// exceed the mode of the underlying assigned volume.
type Share struct {
	BaseModel
	Token       string           `json:"shareToken" gorm:"type:varchar(64);uniqueIndex;not null"`
	OwnerID     uuid.UUID        `json:"ownerID" gorm:"type:uuid;not null;index"`
	SourceSpace SourceSpace      `json:"sourceSpace" gorm:"type:varchar(20);not null;default:'volume'"`
	SourcePath  string           `json:"sourcePath" gorm:"type:text;not null"`
	AccessMode  AccessMode       `json:"accessMode" gorm:"type:varchar(20);not null;default:'readonly'"`
	SharingType SharingType      `json:"sharingType" gorm:"type:varchar(20);not null;default:'anyone'"`
	Recipients  []ShareRecipient `json:"-" gorm:"foreignKey:ShareID;constraint:OnDelete:CASCADE"`
	ExpiresAt   *time.Time       `json:"expiresAt,omitempty"`
}

func (Share) TableName() string {
	return "shares"
}

// ShareRecipient is one permitted user id for a users-mode share.
type ShareRecipient struct {
	ShareID uuid.UUID `json:"shareID" gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;primaryKey"`
}

func (ShareRecipient) TableName() string {
	return "share_recipients"
}

func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

func (s *Share) PermitsUser(userID string) bool {
	if s.SharingType != SharingTypeUsers {
		return true
	}
	for _, r := range s.Recipients {
		if r.UserID.String() == userID {
			return true
		}
	}
	return false
}
