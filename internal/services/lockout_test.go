package services

import (
	"testing"
	"time"

	"github.com/fileharbor/backend/internal/config"
)

func testLockoutService(t *testing.T, maxAttempts, lockMinutes int) *LockoutService {
	t.Helper()
	db := setupTestDB(t)
	return NewLockoutService(db, config.AuthConfig{
		MaxFailedAttempts: maxAttempts,
		LockoutMinutes:    lockMinutes,
	})
}

func TestLockoutArmsAtThreshold(t *testing.T) {
	svc := testLockoutService(t, 3, 15)

	for i := 0; i < 2; i++ {
		if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		locked, err := svc.IsLocked("user@test.com")
		if err != nil {
			t.Fatalf("IsLocked failed: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d attempts, threshold is 3", i+1)
		}
	}

	if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	locked, err := svc.IsLocked("user@test.com")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("expected lock after reaching the threshold")
	}
}

func TestLockoutExpiresLazily(t *testing.T) {
	svc := testLockoutService(t, 2, 15)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if locked, _ := svc.IsLocked("user@test.com"); !locked {
		t.Fatal("expected lock at the threshold")
	}

	// One minute before expiry the lock still holds.
	now = now.Add(14 * time.Minute)
	if locked, _ := svc.IsLocked("user@test.com"); !locked {
		t.Fatal("lock released before the window elapsed")
	}

	now = now.Add(2 * time.Minute)
	if locked, _ := svc.IsLocked("user@test.com"); locked {
		t.Fatal("lock held after the window elapsed")
	}
}

func TestLockoutCounterSurvivesExpiry(t *testing.T) {
	svc := testLockoutService(t, 3, 15)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	// Expiry unlocks but does not reset the counter; the very next failure
	// re-arms the lock immediately.
	now = now.Add(16 * time.Minute)
	if locked, _ := svc.IsLocked("user@test.com"); locked {
		t.Fatal("expected lock expired")
	}

	if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if locked, _ := svc.IsLocked("user@test.com"); !locked {
		t.Fatal("expected re-lock on the first failure after expiry")
	}
}

func TestLockoutClearResetsCounter(t *testing.T) {
	svc := testLockoutService(t, 3, 15)

	for i := 0; i < 2; i++ {
		if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if err := svc.ClearLock("user@test.com"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	// After a clear the full threshold applies again.
	for i := 0; i < 2; i++ {
		if err := svc.IncrementFailedAttempts("user@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if locked, _ := svc.IsLocked("user@test.com"); locked {
		t.Fatal("locked before reaching threshold after clear")
	}
}

func TestLockoutKeysAreIndependent(t *testing.T) {
	svc := testLockoutService(t, 2, 15)

	for i := 0; i < 2; i++ {
		if err := svc.IncrementFailedAttempts("a@test.com"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	if locked, _ := svc.IsLocked("a@test.com"); !locked {
		t.Fatal("expected a@test.com locked")
	}
	if locked, _ := svc.IsLocked("b@test.com"); locked {
		t.Fatal("b@test.com must not be affected")
	}
}
