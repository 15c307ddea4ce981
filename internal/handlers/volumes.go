package handlers

import (
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type VolumesHandler struct {
	Volumes *services.UserVolumeService
}

func NewVolumesHandler(volumes *services.UserVolumeService) *VolumesHandler {
	return &VolumesHandler{Volumes: volumes}
}

type addVolumeRequest struct {
	UserID     string `json:"userID"`
	Label      string `json:"label"`
	VolumePath string `json:"volumePath"`
	AccessMode string `json:"accessMode"`
}

// Add assigns a host directory to a user. Admin only.
func (h *VolumesHandler) Add(c *fiber.Ctx) error {
	var req addVolumeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	userID, err := parseUUID(req.UserID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	volume, err := h.Volumes.AddVolumeToUser(services.AddVolumeInput{
		UserID:     userID,
		Label:      req.Label,
		Path:       req.VolumePath,
		AccessMode: req.AccessMode,
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, volume)
}

// Mine lists the caller's assigned volumes.
func (h *VolumesHandler) Mine(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	userID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	volumes, err := h.Volumes.ListUserVolumes(userID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing volumes")
	}
	return utils.Success(c, fiber.StatusOK, volumes)
}

func (h *VolumesHandler) ListForUser(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	volumes, err := h.Volumes.ListUserVolumes(userID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing volumes")
	}
	return utils.Success(c, fiber.StatusOK, volumes)
}
