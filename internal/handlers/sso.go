package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/middleware"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
)

// SSOHandler drives the OIDC authorization-code flow and hands verified
// claims to the identity services. Claim verification itself happens at
// the provider; this layer only transports the result.
type SSOHandler struct {
	Cfg  *config.Config
	OIDC *services.OIDCService
}

func NewSSOHandler(cfg *config.Config, oidc *services.OIDCService) *SSOHandler {
	return &SSOHandler{Cfg: cfg, OIDC: oidc}
}

func (h *SSOHandler) oauthConfig() (*oauth2.Config, error) {
	cfg := h.Cfg.OIDC
	if !cfg.Enabled || cfg.Issuer == "" {
		return nil, errors.New("oidc is not enabled")
	}
	issuer := strings.TrimRight(cfg.Issuer, "/")
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       strings.Split(cfg.Scopes, ","),
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/authorize",
			TokenURL: issuer + "/token",
		},
	}, nil
}

func (h *SSOHandler) Login(c *fiber.Ctx) error {
	oauthCfg, err := h.oauthConfig()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating state")
	}
	state := base64.URLEncoding.EncodeToString(nonce)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url": oauthCfg.AuthCodeURL(state),
	})
}

func (h *SSOHandler) Callback(c *fiber.Ctx) error {
	frontendURL := h.Cfg.Server.FrontendURL

	code := c.Query("code")
	if code == "" {
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape("authorization code is required"))
	}

	claims, err := h.fetchClaims(c.Context(), code)
	if err != nil {
		logger.Warn("oidc_callback_failed", map[string]interface{}{"error": err.Error()})
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape(err.Error()))
	}

	sessionToken, err := utils.GenerateOIDCSessionToken(claims, h.Cfg.OIDC.SessionTTL)
	if err != nil {
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape("failed creating session"))
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.OIDCSessionCookie,
		Value:    sessionToken,
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Now().Add(h.Cfg.OIDC.SessionTTL),
	})

	if err := h.syncUser(claims); err != nil {
		// Resolution may still yield an ephemeral identity when auto-create
		// is on; surface hard denials to the login page.
		return c.Redirect(frontendURL + "/login?error=" + url.QueryEscape(err.Error()))
	}

	return c.Redirect(frontendURL + "/auth/callback")
}

func (h *SSOHandler) fetchClaims(ctx context.Context, code string) (map[string]interface{}, error) {
	oauthCfg, err := h.oauthConfig()
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.New("failed to exchange code for token")
	}

	client := oauthCfg.Client(ctx, token)
	issuer := strings.TrimRight(h.Cfg.OIDC.Issuer, "/")
	resp, err := client.Get(issuer + "/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, string(body))
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, err
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, errors.New("userinfo response missing subject")
	}
	return claims, nil
}

// syncUser persists the provider identity: link, update, or create per the
// configured policy.
func (h *SSOHandler) syncUser(claims map[string]interface{}) error {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	emailVerified, _ := claims["email_verified"].(bool)

	var username *string
	if v, _ := claims["preferred_username"].(string); v != "" {
		username = &v
	}
	var displayName *string
	if v, _ := claims["name"].(string); v != "" {
		displayName = &v
	}

	roles := services.DeriveRolesFromClaims(claims, h.Cfg.OIDC.AdminGroups)

	user, err := h.OIDC.GetOrCreateOidcUser(services.OIDCUserInput{
		Issuer:               h.Cfg.OIDC.Issuer,
		Sub:                  sub,
		Email:                email,
		EmailVerified:        emailVerified,
		Username:             username,
		DisplayName:          displayName,
		Roles:                roles,
		RequireEmailVerified: h.Cfg.OIDC.RequireEmailVerified,
		AutoCreateUsers:      h.Cfg.OIDC.AutoCreateUsers,
	})
	if err != nil {
		return err
	}

	logger.InfoWithUser(user.ID, "oidc_login_success", map[string]interface{}{
		"issuer": h.Cfg.OIDC.Issuer,
	})
	return nil
}
