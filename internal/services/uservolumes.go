package services

import (
	"strings"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserVolumeService manages labelled host directories assigned to users.
type UserVolumeService struct {
	DB *gorm.DB
}

func NewUserVolumeService(db *gorm.DB) *UserVolumeService {
	return &UserVolumeService{DB: db}
}

type AddVolumeInput struct {
	UserID     uuid.UUID
	Label      string
	Path       string
	AccessMode string
}

func (s *UserVolumeService) AddVolumeToUser(input AddVolumeInput) (*models.UserVolume, error) {
	label := strings.TrimSpace(input.Label)
	if label == "" || strings.Contains(label, "/") {
		return nil, apperr.Validation("Volume label is required and may not contain slashes.")
	}
	if input.Path == "" {
		return nil, apperr.Validation("Volume path is required.")
	}
	mode := input.AccessMode
	if mode == "" {
		mode = string(models.AccessModeReadWrite)
	}
	if !models.ValidAccessMode(mode) {
		return nil, apperr.Validation("Invalid access mode: " + mode)
	}

	var existing models.UserVolume
	err := s.DB.First(&existing, "user_id = ? AND label = ?", input.UserID, label).Error
	if err == nil {
		return nil, apperr.Conflict("Volume label already in use.")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	volume := models.UserVolume{
		UserID:     input.UserID,
		Label:      label,
		Path:       input.Path,
		AccessMode: models.AccessMode(mode),
	}
	if err := s.DB.Create(&volume).Error; err != nil {
		return nil, err
	}
	return &volume, nil
}

func (s *UserVolumeService) ListUserVolumes(userID uuid.UUID) ([]models.UserVolume, error) {
	var volumes []models.UserVolume
	err := s.DB.Where("user_id = ?", userID).Order("label ASC").Find(&volumes).Error
	return volumes, err
}

func (s *UserVolumeService) GetByID(id uuid.UUID) (*models.UserVolume, error) {
	var volume models.UserVolume
	err := s.DB.First(&volume, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &volume, nil
}

// ResolveSource maps a client-facing "<label>/<subpath>" source to the
// assigned volume and its stored "<volume id>/<subpath>" form. Returns nil
// when the leading segment matches none of the user's volume labels.
func (s *UserVolumeService) ResolveSource(userID uuid.UUID, sourcePath string) (*models.UserVolume, string, string, error) {
	normalized, err := NormalizePath(sourcePath)
	if err != nil {
		return nil, "", "", err
	}
	if normalized == "" {
		return nil, "", "", nil
	}

	label := normalized
	subPath := ""
	if idx := strings.Index(normalized, "/"); idx >= 0 {
		label = normalized[:idx]
		subPath = normalized[idx+1:]
	}

	var volume models.UserVolume
	err = s.DB.First(&volume, "user_id = ? AND label = ?", userID, label).Error
	if err == gorm.ErrRecordNotFound {
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", err
	}

	stored := volume.ID.String()
	if subPath != "" {
		stored += "/" + subPath
	}
	return &volume, subPath, stored, nil
}

// ResolveStored splits a stored "<volume id>/<subpath>" back into the
// volume row and subpath.
func (s *UserVolumeService) ResolveStored(storedPath string) (*models.UserVolume, string, error) {
	normalized, err := NormalizePath(storedPath)
	if err != nil {
		return nil, "", err
	}
	idPart := normalized
	subPath := ""
	if idx := strings.Index(normalized, "/"); idx >= 0 {
		idPart = normalized[:idx]
		subPath = normalized[idx+1:]
	}

	volumeID, err := uuid.Parse(idPart)
	if err != nil {
		return nil, "", apperr.NotFound("Volume not found.")
	}
	volume, err := s.GetByID(volumeID)
	if err != nil {
		return nil, "", err
	}
	if volume == nil {
		return nil, "", apperr.NotFound("Volume not found.")
	}
	return volume, subPath, nil
}
