package models

import "time"

// AuthLock tracks failed login attempts per lockout key (normalized email).
// LockedUntil is set once FailedCount reaches the configured threshold and
// expires by wall-clock comparison only; there is no background sweep.
type AuthLock struct {
	Key         string     `json:"key" gorm:"type:varchar(255);primaryKey"`
	FailedCount int        `json:"failedCount" gorm:"not null;default:0"`
	LockedUntil *time.Time `json:"lockedUntil"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (AuthLock) TableName() string {
	return "auth_locks"
}
