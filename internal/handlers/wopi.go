package handlers

import (
	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/internal/storage"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// WOPIHandler implements the subset of the WOPI protocol the online
// editor needs: file info, contents, and the lock verbs. Lock state
// travels in the X-WOPI-* headers per protocol.
type WOPIHandler struct {
	Cfg   *config.Config
	Locks *services.WOPILockService
}

func NewWOPIHandler(cfg *config.Config, locks *services.WOPILockService) *WOPIHandler {
	return &WOPIHandler{Cfg: cfg, Locks: locks}
}

func (h *WOPIHandler) volume() *storage.LocalVolume {
	return storage.NewLocalVolume(h.Cfg.Volumes.RootPath)
}

func (h *WOPIHandler) CheckFileInfo(c *fiber.Ctx) error {
	fileID := c.Params("id")
	info, err := h.volume().Stat(fileID)
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}
	return c.JSON(fiber.Map{
		"BaseFileName":     info.Name(),
		"Size":             info.Size(),
		"UserCanWrite":     true,
		"SupportsLocks":    true,
		"SupportsUpdate":   true,
		"LastModifiedTime": info.ModTime().UTC(),
	})
}

func (h *WOPIHandler) GetFile(c *fiber.Ctx) error {
	hostPath, err := storage.ResolveWithinRoot(h.Cfg.Volumes.RootPath, c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}
	return c.SendFile(hostPath)
}

func (h *WOPIHandler) PutFile(c *fiber.Ctx) error {
	fileID := c.Params("id")

	lockValue := c.Get("X-WOPI-Lock")
	if held := h.Locks.Get(fileID); held != "" && held != lockValue {
		c.Set("X-WOPI-Lock", held)
		return c.SendStatus(fiber.StatusConflict)
	}

	hostPath, err := storage.ResolveWithinRoot(h.Cfg.Volumes.RootPath, fileID)
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "file not found")
	}
	if err := writeFileBytes(hostPath, c.Body()); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed writing file")
	}
	return c.SendStatus(fiber.StatusOK)
}

// LockOps dispatches the lock verbs carried in X-WOPI-Override.
func (h *WOPIHandler) LockOps(c *fiber.Ctx) error {
	fileID := c.Params("id")
	override := c.Get("X-WOPI-Override")
	lockValue := c.Get("X-WOPI-Lock")

	var err error
	switch override {
	case "LOCK":
		err = h.Locks.Lock(fileID, lockValue)
	case "REFRESH_LOCK":
		err = h.Locks.Refresh(fileID, lockValue)
	case "UNLOCK":
		err = h.Locks.Unlock(fileID, lockValue)
	case "GET_LOCK":
		c.Set("X-WOPI-Lock", h.Locks.Get(fileID))
		return c.SendStatus(fiber.StatusOK)
	default:
		return utils.Error(c, fiber.StatusBadRequest, "unsupported WOPI operation")
	}

	if err != nil {
		if apperr.Is(err, fiber.StatusConflict) {
			if held := h.Locks.Get(fileID); held != "" {
				c.Set("X-WOPI-Lock", held)
			}
			return c.SendStatus(fiber.StatusConflict)
		}
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
