package handlers

import (
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/middleware"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Users *services.UserService
	Local *services.LocalAuthService
	Cfg   *config.Config
}

func NewAuthHandler(db *gorm.DB, users *services.UserService, local *services.LocalAuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Users: users, Local: local, Cfg: cfg}
}

func (h *AuthHandler) Status(c *fiber.Ctx) error {
	count, err := h.Users.CountUsers()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"requiresSetup": count == 0,
		"authEnabled":   h.Cfg.Auth.Enabled,
		"authMode":      "both",
		"oidcEnabled":   h.Cfg.OIDC.Enabled,
	})
}

type setupRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
}

// Setup creates the first admin account. Refused once any user exists.
func (h *AuthHandler) Setup(c *fiber.Ctx) error {
	count, err := h.Users.CountUsers()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}
	if count > 0 {
		return utils.Error(c, fiber.StatusConflict, "setup already completed")
	}

	var req setupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Local.CreateLocalUser(services.CreateLocalUserInput{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Roles:       []string{models.RoleAdmin},
	})
	if err != nil {
		return utils.Fail(c, err)
	}

	logger.Info("auth_setup_completed", map[string]interface{}{"email": user.Email})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Local.AttemptLocalLogin(req.Email, req.Password)
	if err != nil {
		return utils.Fail(c, err)
	}
	if user == nil {
		logger.Warn("login_failed", map[string]interface{}{
			"email": utils.NormalizeEmail(req.Email),
			"ip":    c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	userID, err := parseUUID(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "invalid user id")
	}

	// A confirmed second factor turns the login into a challenge.
	var mfa models.MFAConfig
	mfaErr := h.DB.First(&mfa, "user_id = ? AND confirmed = ?", userID, true).Error
	if mfaErr == nil {
		mfaToken, err := utils.GenerateMFAToken(userID, user.Email)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed generating challenge")
		}
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"mfaRequired": true,
			"mfaToken":    mfaToken,
		})
	}
	if mfaErr != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking second factor")
	}

	return h.issueSession(c, user)
}

func (h *AuthHandler) issueSession(c *fiber.Ctx, user *models.ClientUser) error {
	var row models.User
	if err := h.DB.Preload("Roles").First(&row, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	token, err := utils.GenerateSessionToken(&row)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Now().Add(time.Duration(h.Cfg.JWT.ExpirationHours) * time.Hour),
	})

	logger.InfoWithUser(user.ID, "login_success", map[string]interface{}{"ip": c.IP()})
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	for _, name := range []string{middleware.SessionCookie, middleware.OIDCSessionCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			HTTPOnly: true,
			Expires:  time.Now().Add(-time.Hour),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": identity})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	userID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Local.ChangeLocalPassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type addPasswordRequest struct {
	Password string `json:"password"`
}

// AddPassword attaches a local password to an account that signed up via
// the identity provider.
func (h *AuthHandler) AddPassword(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	userID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	var req addPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Local.AddLocalPassword(userID, req.Password); err != nil {
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ResetPassword is the privileged admin reset; no current-password check.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Local.SetLocalPasswordAdmin(userID, req.NewPassword); err != nil {
		return utils.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
