package services

import (
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockoutService tracks failed login attempts per lockout key and enforces
// a timed lock once the threshold is reached. Expiry is checked lazily on
// the next access; the failed counter is only reset by a successful login
// or an explicit clear.
type LockoutService struct {
	DB          *gorm.DB
	maxAttempts int
	lockoutFor  time.Duration
	now         func() time.Time
}

func NewLockoutService(db *gorm.DB, cfg config.AuthConfig) *LockoutService {
	maxAttempts := cfg.MaxFailedAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	minutes := cfg.LockoutMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return &LockoutService{
		DB:          db,
		maxAttempts: maxAttempts,
		lockoutFor:  time.Duration(minutes) * time.Minute,
		now:         time.Now,
	}
}

// SetClock replaces the wall clock, for deterministic tests.
func (s *LockoutService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *LockoutService) getLock(key string) (models.AuthLock, error) {
	var lock models.AuthLock
	err := s.DB.First(&lock, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return models.AuthLock{Key: key}, nil
	}
	if err != nil {
		return models.AuthLock{}, err
	}
	return lock, nil
}

func (s *LockoutService) setLock(key string, failedCount int, lockedUntil *time.Time) error {
	lock := models.AuthLock{
		Key:         key,
		FailedCount: failedCount,
		LockedUntil: lockedUntil,
		UpdatedAt:   s.now(),
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"failed_count", "locked_until", "updated_at"}),
	}).Create(&lock).Error
}

// IsLocked reports whether the key is currently locked. An expired lock
// counts as unlocked but is not cleared here.
func (s *LockoutService) IsLocked(key string) (bool, error) {
	lock, err := s.getLock(key)
	if err != nil {
		return false, err
	}
	if lock.LockedUntil == nil {
		return false, nil
	}
	return s.now().Before(*lock.LockedUntil), nil
}

// IncrementFailedAttempts bumps the counter and arms the lock once the
// threshold is reached. Concurrent increments may under-count; the storage
// upsert keeps each write atomic.
func (s *LockoutService) IncrementFailedAttempts(key string) error {
	lock, err := s.getLock(key)
	if err != nil {
		return err
	}
	failed := lock.FailedCount + 1
	var lockedUntil *time.Time
	if failed >= s.maxAttempts {
		until := s.now().Add(s.lockoutFor)
		lockedUntil = &until
	}
	return s.setLock(key, failed, lockedUntil)
}

func (s *LockoutService) ClearLock(key string) error {
	return s.setLock(key, 0, nil)
}
