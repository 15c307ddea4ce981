package services

import (
	"sync"
	"time"

	"github.com/fileharbor/backend/pkg/apperr"
)

const defaultWOPILockTTL = 30 * time.Minute

// WOPILockService is the in-memory keyed lock table consumed by the online
// editor integration. Locks expire lazily on the next access, the same
// discipline the lockout guard uses.
type WOPILockService struct {
	mu    sync.Mutex
	locks map[string]wopiLock
	ttl   time.Duration
	now   func() time.Time
}

type wopiLock struct {
	value     string
	expiresAt time.Time
}

func NewWOPILockService(ttl time.Duration) *WOPILockService {
	if ttl <= 0 {
		ttl = defaultWOPILockTTL
	}
	return &WOPILockService{
		locks: make(map[string]wopiLock),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *WOPILockService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// current returns the live lock for a key, dropping it when expired.
// Caller must hold the mutex.
func (s *WOPILockService) current(key string) (wopiLock, bool) {
	lock, ok := s.locks[key]
	if !ok {
		return wopiLock{}, false
	}
	if !s.now().Before(lock.expiresAt) {
		delete(s.locks, key)
		return wopiLock{}, false
	}
	return lock, true
}

// Lock acquires or re-acquires a lock. Holding the same value refreshes
// the expiry; a different holder is a conflict carrying the current value.
func (s *WOPILockService) Lock(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.current(key); ok && existing.value != value {
		return apperr.Conflict("File is locked.").WithDetails(map[string]interface{}{
			"lock": existing.value,
		})
	}
	s.locks[key] = wopiLock{value: value, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *WOPILockService) Refresh(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.current(key)
	if !ok || existing.value != value {
		return apperr.Conflict("Lock mismatch.").WithDetails(map[string]interface{}{
			"lock": existing.value,
		})
	}
	s.locks[key] = wopiLock{value: value, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *WOPILockService) Unlock(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.current(key)
	if !ok || existing.value != value {
		return apperr.Conflict("Lock mismatch.").WithDetails(map[string]interface{}{
			"lock": existing.value,
		})
	}
	delete(s.locks, key)
	return nil
}

// Get returns the current lock value, or empty when unlocked.
func (s *WOPILockService) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.current(key)
	if !ok {
		return ""
	}
	return existing.value
}
