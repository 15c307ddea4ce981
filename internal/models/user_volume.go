package models

import "github.com/google/uuid"

type AccessMode string

const (
	AccessModeReadOnly  AccessMode = "readonly"
	AccessModeReadWrite AccessMode = "readwrite"
)

func ValidAccessMode(m string) bool {
	switch AccessMode(m) {
	case AccessModeReadOnly, AccessModeReadWrite:
		return true
	default:
		return false
	}
}

// UserVolume assigns a labelled host directory to a user. Share sources
// inside the volume are addressed as "<label>/<subpath>" by the client and
// stored as "<volume id>/<subpath>".
type UserVolume struct {
	BaseModel
	UserID     uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	Label      string     `json:"label" gorm:"type:varchar(100);not null"`
	Path       string     `json:"path" gorm:"type:text;not null"`
	AccessMode AccessMode `json:"accessMode" gorm:"type:varchar(20);not null;default:'readwrite'"`
}

func (UserVolume) TableName() string {
	return "user_volumes"
}
