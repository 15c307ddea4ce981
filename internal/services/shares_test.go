package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"gorm.io/gorm"
)

func setupShares(t *testing.T, userVolumes bool) (*gorm.DB, *ShareService) {
	t.Helper()
	db := setupTestDB(t)
	volumes := NewUserVolumeService(db)
	svc := NewShareService(db, volumes, config.VolumeConfig{
		RootPath:           t.TempDir(),
		UserVolumesEnabled: userVolumes,
	})
	return db, svc
}

func persistedIdentity(user *models.User) *Identity {
	return &Identity{
		ClientUser: *models.ToClientUser(user),
		Provider:   "local",
		Kind:       IdentityPersisted,
	}
}

func TestCreateShareDefaults(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")

	info, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath: "/docs/reports/",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if info.ShareToken == "" {
		t.Fatal("expected a token")
	}
	if info.AccessMode != models.AccessModeReadOnly {
		t.Fatalf("default access mode = %q, want readonly", info.AccessMode)
	}
	if info.SharingType != models.SharingTypeAnyone {
		t.Fatalf("default sharing type = %q, want anyone", info.SharingType)
	}
	if info.SourcePath != "docs/reports" {
		t.Fatalf("source path not normalized: %q", info.SourcePath)
	}
	if info.SourceSpace != models.SourceSpaceVolume {
		t.Fatalf("source space = %q", info.SourceSpace)
	}
}

func TestCreateShareRejectsEphemeralOwner(t *testing.T) {
	_, svc := setupShares(t, false)

	username := "ghost"
	_, err := svc.CreateShare(&Identity{
		ClientUser: models.ClientUser{ID: "oidc:sub-1", Username: &username},
		Kind:       IdentityEphemeral,
	}, CreateShareInput{SourcePath: "docs"})
	if !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("expected forbidden for ephemeral owner, got %v", err)
	}
}

func TestCreateShareClampsUserVolumeMode(t *testing.T) {
	db, svc := setupShares(t, true)
	owner := createTestUser(t, db, "owner@test.com")

	volumes := NewUserVolumeService(db)
	if _, err := volumes.AddVolumeToUser(AddVolumeInput{
		UserID:     owner.ID,
		Label:      "media",
		Path:       t.TempDir(),
		AccessMode: "readonly",
	}); err != nil {
		t.Fatalf("adding volume: %v", err)
	}

	_, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath: "media/photos",
		AccessMode: "readwrite",
	})
	if !apperr.Is(err, http.StatusBadRequest) {
		t.Fatalf("expected validation error on over-broad mode, got %v", err)
	}

	info, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath: "media/photos",
		AccessMode: "readonly",
	})
	if err != nil {
		t.Fatalf("readonly share failed: %v", err)
	}
	if info.SourceSpace != models.SourceSpaceUserVolume {
		t.Fatalf("source space = %q, want user_volume", info.SourceSpace)
	}
}

func TestCreateShareUsersModeNeedsRecipients(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")

	_, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath:  "docs",
		SharingType: "users",
	})
	if !apperr.Is(err, http.StatusBadRequest) {
		t.Fatalf("expected validation error without recipients, got %v", err)
	}
}

func TestAuthorizeAccessExpiryWinsOverRecipiency(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")
	recipient := createTestUser(t, db, "friend@test.com")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	past := now.Add(-time.Hour)
	info, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath:  "docs",
		SharingType: "users",
		UserIDs:     []string{recipient.ID.String()},
		ExpiresAt:   &past,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Even a permitted recipient sees expiry, not a recipiency verdict.
	_, err = svc.AuthorizeAccess(info.ShareToken, persistedIdentity(recipient))
	if !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("expected forbidden on expiry, got %v", err)
	}
}

func TestAuthorizeAccessUsersMode(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")
	recipient := createTestUser(t, db, "friend@test.com")
	stranger := createTestUser(t, db, "stranger@test.com")

	info, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath:  "docs",
		SharingType: "users",
		UserIDs:     []string{recipient.ID.String()},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.AuthorizeAccess(info.ShareToken, nil); !apperr.Is(err, http.StatusUnauthorized) {
		t.Fatalf("anonymous caller: got %v, want 401", err)
	}
	if _, err := svc.AuthorizeAccess(info.ShareToken, persistedIdentity(stranger)); !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("non-recipient: got %v, want 403", err)
	}
	if _, err := svc.AuthorizeAccess(info.ShareToken, persistedIdentity(recipient)); err != nil {
		t.Fatalf("recipient refused: %v", err)
	}
}

func TestAuthorizeAccessAnyoneModeIsOpen(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")

	info, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{SourcePath: "docs"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.AuthorizeAccess(info.ShareToken, nil); err != nil {
		t.Fatalf("anonymous access to anyone share refused: %v", err)
	}
}

func TestAuthorizeAccessUnknownToken(t *testing.T) {
	_, svc := setupShares(t, false)
	if _, err := svc.AuthorizeAccess("does-not-exist", nil); !apperr.Is(err, http.StatusNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetShareInfoReportsExpiryWithoutFailing(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	past := now.Add(-time.Hour)
	created, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath: "docs",
		ExpiresAt:  &past,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	info, err := svc.GetShareInfo(created.ShareToken)
	if err != nil {
		t.Fatalf("info must succeed for expired shares: %v", err)
	}
	if !info.IsExpired {
		t.Fatal("expected isExpired true")
	}
}

func TestUpdateShareOwnerOnlyAndClearExpiry(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")
	other := createTestUser(t, db, "other@test.com")

	past := time.Now().Add(-time.Hour)
	created, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath: "docs",
		ExpiresAt:  &past,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	shareID := mustParseUUID(t, created.ID)

	if _, err := svc.UpdateShare(other.ID, shareID, UpdateShareInput{ClearExpiry: true}); !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("non-owner update: got %v, want 403", err)
	}

	info, err := svc.UpdateShare(owner.ID, shareID, UpdateShareInput{ClearExpiry: true})
	if err != nil {
		t.Fatalf("clear expiry failed: %v", err)
	}
	if info.ExpiresAt != nil || info.IsExpired {
		t.Fatalf("expiry not cleared: %+v", info)
	}

	if _, err := svc.AuthorizeAccess(created.ShareToken, nil); err != nil {
		t.Fatalf("revived share still refused: %v", err)
	}
}

func TestDeleteShareRemovesRecipients(t *testing.T) {
	db, svc := setupShares(t, false)
	owner := createTestUser(t, db, "owner@test.com")
	recipient := createTestUser(t, db, "friend@test.com")

	created, err := svc.CreateShare(persistedIdentity(owner), CreateShareInput{
		SourcePath:  "docs",
		SharingType: "users",
		UserIDs:     []string{recipient.ID.String()},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.DeleteShare(owner.ID, mustParseUUID(t, created.ID)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.ShareRecipient{}).Count(&count).Error; err != nil {
		t.Fatalf("counting recipients: %v", err)
	}
	if count != 0 {
		t.Fatalf("recipients left behind: %d", count)
	}
}
