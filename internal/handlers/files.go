package handlers

import (
	"errors"
	"path"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/internal/storage"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// FilesHandler serves the main volume. Every operation consults the
// path rules: hidden paths behave as if they do not exist, read-only
// paths reject writes.
type FilesHandler struct {
	Cfg    *config.Config
	Access *services.AccessService
}

func NewFilesHandler(cfg *config.Config, access *services.AccessService) *FilesHandler {
	return &FilesHandler{Cfg: cfg, Access: access}
}

func (h *FilesHandler) volume() *storage.LocalVolume {
	return storage.NewLocalVolume(h.Cfg.Volumes.RootPath)
}

// permissionFor loads the effective permission, translating hidden into
// a not-found error so hidden paths never leak their existence.
func (h *FilesHandler) permissionFor(p string) (models.Permission, error) {
	perm, err := h.Access.GetPermissionForPath(p)
	if err != nil {
		return "", err
	}
	return perm, nil
}

func (h *FilesHandler) Browse(c *fiber.Ctx) error {
	relPath, err := services.NormalizePath(c.Params("*"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}

	perm, err := h.permissionFor(relPath)
	if err != nil {
		return utils.Fail(c, err)
	}
	if perm == models.PermissionHidden {
		return utils.Error(c, fiber.StatusNotFound, "path not found")
	}

	entries, err := h.volume().List(relPath)
	if err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid path")
		}
		return utils.Error(c, fiber.StatusNotFound, "path not found")
	}

	// Hidden children are dropped from the listing entirely.
	visible := make([]storage.Entry, 0, len(entries))
	for _, entry := range entries {
		childPerm, err := h.permissionFor(path.Join(relPath, entry.Name))
		if err != nil {
			return utils.Fail(c, err)
		}
		if childPerm == models.PermissionHidden {
			continue
		}
		visible = append(visible, entry)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"path":       relPath,
		"permission": perm,
		"items":      visible,
	})
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	relPath, err := services.NormalizePath(c.Params("*"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}

	perm, err := h.permissionFor(relPath)
	if err != nil {
		return utils.Fail(c, err)
	}
	if perm == models.PermissionHidden {
		return utils.Error(c, fiber.StatusNotFound, "path not found")
	}

	hostPath, err := storage.ResolveWithinRoot(h.Cfg.Volumes.RootPath, relPath)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}
	return c.SendFile(hostPath)
}

// writePermission gates mutating operations. Hidden reads as missing,
// read-only reads as forbidden.
func (h *FilesHandler) writePermission(c *fiber.Ctx, relPath string) (bool, error) {
	perm, err := h.permissionFor(relPath)
	if err != nil {
		return false, utils.Fail(c, err)
	}
	switch perm {
	case models.PermissionHidden:
		return false, utils.Error(c, fiber.StatusNotFound, "path not found")
	case models.PermissionReadOnly:
		return false, utils.Error(c, fiber.StatusForbidden, "path is read-only")
	}
	return true, nil
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	relPath, err := services.NormalizePath(c.Params("*"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}
	if relPath == "" {
		return utils.Error(c, fiber.StatusBadRequest, "file path is required")
	}

	if ok, err := h.writePermission(c, relPath); !ok {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading upload")
	}
	defer src.Close()

	if err := h.volume().Save(relPath, src); err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid path")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving file")
	}

	identity := currentIdentity(c)
	if identity != nil {
		logger.InfoWithUser(identity.ID, "file_uploaded", map[string]interface{}{
			"path": relPath,
			"size": file.Size,
		})
	}
	return utils.Success(c, fiber.StatusCreated, fiber.Map{"path": relPath})
}

type mkdirRequest struct {
	Path string `json:"path"`
}

func (h *FilesHandler) Mkdir(c *fiber.Ctx) error {
	var req mkdirRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	relPath, err := services.NormalizePath(req.Path)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}
	if relPath == "" {
		return utils.Error(c, fiber.StatusBadRequest, "path is required")
	}

	if ok, err := h.writePermission(c, relPath); !ok {
		return err
	}

	if err := h.volume().Mkdir(relPath); err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid path")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating directory")
	}
	return utils.Success(c, fiber.StatusCreated, fiber.Map{"path": relPath})
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	relPath, err := services.NormalizePath(c.Params("*"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid path")
	}
	if relPath == "" {
		return utils.Error(c, fiber.StatusBadRequest, "path is required")
	}

	if ok, err := h.writePermission(c, relPath); !ok {
		return err
	}

	if err := h.volume().Delete(relPath); err != nil {
		if errors.Is(err, storage.ErrPathTraversal) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid path")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting path")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
