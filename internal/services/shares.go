package services

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareService publishes paths under opaque tokens and authorizes access
// against expiry, sharing type, and access mode.
type ShareService struct {
	DB      *gorm.DB
	Volumes *UserVolumeService
	Cfg     config.VolumeConfig
	now     func() time.Time
}

func NewShareService(db *gorm.DB, volumes *UserVolumeService, cfg config.VolumeConfig) *ShareService {
	return &ShareService{DB: db, Volumes: volumes, Cfg: cfg, now: time.Now}
}

func (s *ShareService) SetClock(now func() time.Time) {
	s.now = now
}

func newShareToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

type CreateShareInput struct {
	SourcePath  string
	AccessMode  string
	SharingType string
	UserIDs     []string
	ExpiresAt   *time.Time
}

// ShareInfo is the public projection of a share.
type ShareInfo struct {
	ID          string             `json:"id"`
	ShareToken  string             `json:"shareToken"`
	SourceSpace models.SourceSpace `json:"sourceSpace"`
	SourcePath  string             `json:"sourcePath"`
	AccessMode  models.AccessMode  `json:"accessMode"`
	SharingType models.SharingType `json:"sharingType"`
	ExpiresAt   *time.Time         `json:"expiresAt,omitempty"`
	IsExpired   bool               `json:"isExpired"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func (s *ShareService) toInfo(share *models.Share) *ShareInfo {
	return &ShareInfo{
		ID:          share.ID.String(),
		ShareToken:  share.Token,
		SourceSpace: share.SourceSpace,
		SourcePath:  share.SourcePath,
		AccessMode:  share.AccessMode,
		SharingType: share.SharingType,
		ExpiresAt:   share.ExpiresAt,
		IsExpired:   share.IsExpired(s.now()),
		CreatedAt:   share.CreatedAt,
	}
}

// CreateShare publishes a path owned by the caller. For paths inside an
// assigned user volume the requested access mode may not exceed the
// volume's mode; such requests are rejected outright rather than silently
// downgraded.
func (s *ShareService) CreateShare(owner *Identity, input CreateShareInput) (*ShareInfo, error) {
	if owner == nil {
		return nil, apperr.Unauthorized("")
	}
	if owner.IsEphemeral() {
		return nil, apperr.Forbidden("Account is not synced yet; retry after sign-in completes.")
	}

	mode := input.AccessMode
	if mode == "" {
		mode = string(models.AccessModeReadOnly)
	}
	if !models.ValidAccessMode(mode) {
		return nil, apperr.Validation("Invalid access mode: " + mode)
	}

	sharingType := input.SharingType
	if sharingType == "" {
		sharingType = string(models.SharingTypeAnyone)
	}
	if sharingType != string(models.SharingTypeAnyone) && sharingType != string(models.SharingTypeUsers) {
		return nil, apperr.Validation("Invalid sharing type: " + sharingType)
	}

	sourcePath, err := NormalizePath(input.SourcePath)
	if err != nil {
		return nil, err
	}
	if sourcePath == "" {
		return nil, apperr.Validation("Source path is required.")
	}

	ownerID, err := uuid.Parse(owner.ID)
	if err != nil {
		return nil, apperr.Validation("Invalid owner id.")
	}

	sourceSpace := models.SourceSpaceVolume
	storedPath := sourcePath

	if s.Cfg.UserVolumesEnabled {
		volume, _, stored, err := s.Volumes.ResolveSource(ownerID, sourcePath)
		if err != nil {
			return nil, err
		}
		if volume != nil {
			if models.AccessMode(mode) == models.AccessModeReadWrite &&
				volume.AccessMode == models.AccessModeReadOnly {
				return nil, apperr.Validation("Cannot create a read-write share on a read-only volume.")
			}
			sourceSpace = models.SourceSpaceUserVolume
			storedPath = stored
		}
	}

	token, err := newShareToken()
	if err != nil {
		return nil, err
	}

	share := models.Share{
		Token:       token,
		OwnerID:     ownerID,
		SourceSpace: sourceSpace,
		SourcePath:  storedPath,
		AccessMode:  models.AccessMode(mode),
		SharingType: models.SharingType(sharingType),
		ExpiresAt:   input.ExpiresAt,
	}

	recipients, err := parseRecipients(input.UserIDs)
	if err != nil {
		return nil, err
	}
	if share.SharingType == models.SharingTypeUsers && len(recipients) == 0 {
		return nil, apperr.Validation("A users share needs at least one recipient.")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&share).Error; err != nil {
			return err
		}
		for _, userID := range recipients {
			row := models.ShareRecipient{ShareID: share.ID, UserID: userID}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toInfo(&share), nil
}

func parseRecipients(userIDs []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(userIDs))
	for _, raw := range userIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("Invalid recipient user id: " + raw)
		}
		out = append(out, id)
	}
	return out, nil
}

type UpdateShareInput struct {
	AccessMode  *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// UpdateShare mutates an owned share. Setting expiresAt in the past is
// permitted and expires the share immediately.
func (s *ShareService) UpdateShare(ownerID uuid.UUID, shareID uuid.UUID, input UpdateShareInput) (*ShareInfo, error) {
	var share models.Share
	err := s.DB.First(&share, "id = ?", shareID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("Share not found.")
	}
	if err != nil {
		return nil, err
	}
	if share.OwnerID != ownerID {
		return nil, apperr.Forbidden("")
	}

	updates := map[string]interface{}{}

	if input.AccessMode != nil {
		if !models.ValidAccessMode(*input.AccessMode) {
			return nil, apperr.Validation("Invalid access mode: " + *input.AccessMode)
		}
		if share.SourceSpace == models.SourceSpaceUserVolume &&
			models.AccessMode(*input.AccessMode) == models.AccessModeReadWrite {
			volume, _, err := s.Volumes.ResolveStored(share.SourcePath)
			if err != nil {
				return nil, err
			}
			if volume.AccessMode == models.AccessModeReadOnly {
				return nil, apperr.Validation("Cannot create a read-write share on a read-only volume.")
			}
		}
		updates["access_mode"] = *input.AccessMode
	}

	if input.ClearExpiry {
		updates["expires_at"] = nil
	} else if input.ExpiresAt != nil {
		updates["expires_at"] = *input.ExpiresAt
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&share).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if err := s.DB.First(&share, "id = ?", shareID).Error; err != nil {
		return nil, err
	}
	return s.toInfo(&share), nil
}

func (s *ShareService) DeleteShare(ownerID uuid.UUID, shareID uuid.UUID) error {
	var share models.Share
	err := s.DB.First(&share, "id = ?", shareID).Error
	if err == gorm.ErrRecordNotFound {
		return apperr.NotFound("Share not found.")
	}
	if err != nil {
		return err
	}
	if share.OwnerID != ownerID {
		return apperr.Forbidden("")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("share_id = ?", shareID).Delete(&models.ShareRecipient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Share{}, "id = ?", shareID).Error
	})
}

func (s *ShareService) ListShares(ownerID uuid.UUID) ([]ShareInfo, error) {
	var shares []models.Share
	if err := s.DB.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&shares).Error; err != nil {
		return nil, err
	}
	out := make([]ShareInfo, 0, len(shares))
	for i := range shares {
		out = append(out, *s.toInfo(&shares[i]))
	}
	return out, nil
}

// GetShareInfo is the public metadata lookup; it reports expiry instead of
// failing on it.
func (s *ShareService) GetShareInfo(token string) (*ShareInfo, error) {
	share, err := s.getByToken(token)
	if err != nil {
		return nil, err
	}
	return s.toInfo(share), nil
}

func (s *ShareService) getByToken(token string) (*models.Share, error) {
	var share models.Share
	err := s.DB.Preload("Recipients").First(&share, "token = ?", token).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("Share not found.")
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// AuthorizeAccess gates every access and browse operation on a share.
// Expiry is checked first and always wins; users-mode shares then require
// the caller to be a permitted recipient.
func (s *ShareService) AuthorizeAccess(token string, caller *Identity) (*models.Share, error) {
	share, err := s.getByToken(token)
	if err != nil {
		return nil, err
	}

	if share.IsExpired(s.now()) {
		return nil, apperr.Forbidden("Share has expired.")
	}

	if share.SharingType == models.SharingTypeUsers {
		if caller == nil || caller.ID == "" {
			return nil, apperr.Unauthorized("")
		}
		if !share.PermitsUser(caller.ID) {
			return nil, apperr.Forbidden("")
		}
	}

	return share, nil
}

// ResolveShareRoot maps a share to the host directory it exposes.
func (s *ShareService) ResolveShareRoot(share *models.Share) (string, error) {
	if share.SourceSpace == models.SourceSpaceUserVolume {
		volume, subPath, err := s.Volumes.ResolveStored(share.SourcePath)
		if err != nil {
			return "", err
		}
		return filepath.Join(volume.Path, filepath.FromSlash(subPath)), nil
	}
	return filepath.Join(s.Cfg.RootPath, filepath.FromSlash(share.SourcePath)), nil
}
