package handlers

import (
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

type MFAHandler struct {
	DB    *gorm.DB
	Users *services.UserService
	Cfg   *config.Config
}

func NewMFAHandler(db *gorm.DB, users *services.UserService, cfg *config.Config) *MFAHandler {
	return &MFAHandler{DB: db, Users: users, Cfg: cfg}
}

// Enroll generates a TOTP secret for the caller. The enrollment stays
// unconfirmed until a valid code is presented.
func (h *MFAHandler) Enroll(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	userID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "FileHarbor",
		AccountName: identity.Email,
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating secret")
	}

	var existing models.MFAConfig
	dbErr := h.DB.First(&existing, "user_id = ?", userID).Error
	if dbErr == nil {
		if existing.Confirmed {
			return utils.Error(c, fiber.StatusConflict, "second factor already enabled")
		}
		if err := h.DB.Model(&existing).Updates(map[string]interface{}{
			"totp_secret": key.Secret(),
			"confirmed":   false,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed storing secret")
		}
	} else if dbErr == gorm.ErrRecordNotFound {
		cfg := models.MFAConfig{UserID: userID, TOTPSecret: key.Secret()}
		if err := h.DB.Create(&cfg).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed storing secret")
		}
	} else {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking enrollment")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"secret":     key.Secret(),
		"otpauthURL": key.URL(),
	})
}

type mfaConfirmRequest struct {
	Code string `json:"code"`
}

func (h *MFAHandler) Confirm(c *fiber.Ctx) error {
	identity := currentIdentity(c)
	userID, err := persistedUserID(identity)
	if err != nil {
		return utils.Fail(c, err)
	}

	var req mfaConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var cfg models.MFAConfig
	if err := h.DB.First(&cfg, "user_id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "no enrollment in progress")
	}

	if !totp.Validate(req.Code, cfg.TOTPSecret) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid code")
	}

	now := time.Now()
	if err := h.DB.Model(&cfg).Updates(map[string]interface{}{
		"confirmed":    true,
		"confirmed_at": &now,
	}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed confirming enrollment")
	}

	logger.InfoWithUser(identity.ID, "mfa_enabled", nil)
	return c.SendStatus(fiber.StatusNoContent)
}

type mfaVerifyRequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code"`
}

// Verify exchanges a login challenge token plus a valid code for a session.
func (h *MFAHandler) Verify(c *fiber.Ctx, auth *AuthHandler) error {
	var req mfaVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	claims, err := utils.ValidateMFAToken(req.MFAToken)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired challenge")
	}
	if !utils.IsJTIValid(claims.JTI) {
		return utils.Error(c, fiber.StatusUnauthorized, "challenge already used")
	}

	var cfg models.MFAConfig
	if err := h.DB.First(&cfg, "user_id = ? AND confirmed = ?", claims.UserID, true).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "second factor not enabled")
	}

	if !totp.Validate(req.Code, cfg.TOTPSecret) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid code")
	}
	utils.ConsumeJTI(claims.JTI)

	user, err := h.Users.GetByID(claims.UserID)
	if err != nil || user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	return auth.issueSession(c, user)
}
