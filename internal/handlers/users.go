package handlers

import (
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type UsersHandler struct {
	Users *services.UserService
}

func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{Users: users}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	users, total, err := h.Users.ListUsers(p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}
	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

// Shareable returns the slim projection recipient pickers use, excluding
// the caller.
func (h *UsersHandler) Shareable(c *fiber.Ctx) error {
	identity := currentIdentity(c)

	excludeID := ""
	if identity != nil && !identity.IsEphemeral() {
		excludeID = identity.ID
	}

	users, err := h.Users.ListShareableUsers(excludeID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}
	return utils.Success(c, fiber.StatusOK, users)
}

type updateProfileRequest struct {
	Email       *string `json:"email"`
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
}

func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.UpdateUserProfile(userID, services.UpdateProfileInput{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *UsersHandler) UpdateRoles(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Users.UpdateUserRoles(userID, req.Roles)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	deleted, err := h.Users.DeleteUser(userID)
	if err != nil {
		return utils.Fail(c, err)
	}
	if !deleted {
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	}

	logger.Info("user_deleted", map[string]interface{}{"user_id": userID.String()})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}
