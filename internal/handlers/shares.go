package handlers

import (
	"errors"
	"time"

	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/internal/storage"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type SharesHandler struct {
	Shares *services.ShareService
}

func NewSharesHandler(shares *services.ShareService) *SharesHandler {
	return &SharesHandler{Shares: shares}
}

type createShareRequest struct {
	SourcePath  string     `json:"sourcePath"`
	AccessMode  string     `json:"accessMode"`
	SharingType string     `json:"sharingType"`
	UserIDs     []string   `json:"userIds"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func (h *SharesHandler) Create(c *fiber.Ctx) error {
	identity := currentIdentity(c)

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	info, err := h.Shares.CreateShare(identity, services.CreateShareInput{
		SourcePath:  req.SourcePath,
		AccessMode:  req.AccessMode,
		SharingType: req.SharingType,
		UserIDs:     req.UserIDs,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.InfoWithUser(identity.ID, "share_created", map[string]interface{}{
		"share_id":     info.ID,
		"source_space": info.SourceSpace,
	})
	return utils.Success(c, fiber.StatusCreated, info)
}

func (h *SharesHandler) ListMine(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	ownerID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	shares, err := h.Shares.ListShares(ownerID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shares")
	}
	return utils.Success(c, fiber.StatusOK, shares)
}

type updateShareRequest struct {
	AccessMode  *string    `json:"accessMode"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"clearExpiry"`
}

func (h *SharesHandler) Update(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	ownerID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	shareID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid share id")
	}

	var req updateShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	info, err := h.Shares.UpdateShare(ownerID, shareID, services.UpdateShareInput{
		AccessMode:  req.AccessMode,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, info)
}

func (h *SharesHandler) Delete(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	ownerID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	shareID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid share id")
	}

	if err := h.Shares.DeleteShare(ownerID, shareID); err != nil {
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Info is the public metadata endpoint; an expired share still answers
// here, flagged isExpired.
func (h *SharesHandler) Info(c *fiber.Ctx) error {
	info, err := h.Shares.GetShareInfo(c.Params("token"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, info)
}

// Access authorizes the caller against the share; expiry always wins.
func (h *SharesHandler) Access(c *fiber.Ctx) error {
	share, err := h.Shares.AuthorizeAccess(c.Params("token"), currentIdentity(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"accessMode":  share.AccessMode,
		"sourceSpace": share.SourceSpace,
	})
}

// Browse lists directory entries beneath the shared path.
func (h *SharesHandler) Browse(c *fiber.Ctx) error {
	share, err := h.Shares.AuthorizeAccess(c.Params("token"), currentIdentity(c))
	if err != nil {
		return utils.Fail(c, err)
	}

	root, err := h.Shares.ResolveShareRoot(share)
	if err != nil {
		return utils.Fail(c, err)
	}

	subPath, err := services.NormalizePath(c.Params("*"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}
	volume := storage.NewLocalVolume(root)
	entries, err := volume.List(subPath)
	if err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid path")
		}
		return utils.Error(c, fiber.StatusNotFound, "path not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"path":  subPath,
		"items": entries,
	})
}
