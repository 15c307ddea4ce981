package middleware

import (
	"strings"

	"github.com/fileharbor/backend/internal/config"
	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/logger"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const currentIdentityKey = "currentIdentity"

const (
	SessionCookie     = "fh_session"
	OIDCSessionCookie = "fh_oidc_session"
)

// syntheticUserID is the fixed identity used when authentication is
// disabled entirely.
const syntheticUserID = "00000000-0000-0000-0000-000000000001"

type AuthMiddleware struct {
	Resolver *services.RequestUserService
	Cfg      *config.Config
}

func NewAuthMiddleware(resolver *services.RequestUserService, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{Resolver: resolver, Cfg: cfg}
}

func CORS(frontendURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     frontendURL,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

// claimsSession adapts a validated OIDC session token to the resolver's
// session view.
type claimsSession struct {
	claims map[string]interface{}
}

func (s *claimsSession) IsAuthenticated() bool {
	return s != nil && s.claims != nil
}

func (s *claimsSession) Claims() map[string]interface{} {
	return s.claims
}

// Authenticate resolves the request identity and stores it in locals. It
// never rejects; RequireAuth does that.
func (a *AuthMiddleware) Authenticate(c *fiber.Ctx) error {
	auth := services.RequestAuth{}

	if !a.Cfg.Auth.Enabled {
		username := "everyone"
		auth.Synthetic = &services.Identity{
			ClientUser: models.ClientUser{
				ID:       syntheticUserID,
				Email:    "everyone@localhost",
				Username: &username,
				Roles:    []string{models.RoleAdmin},
			},
			Provider: "none",
			Kind:     services.IdentityPersisted,
		}
	}

	if token := a.sessionToken(c); token != "" {
		if claims, err := utils.ValidateSessionToken(token); err == nil {
			userID := claims.UserID
			auth.LocalUserID = &userID
		}
	}

	if auth.LocalUserID == nil {
		if raw := c.Cookies(OIDCSessionCookie); raw != "" {
			if claims, err := utils.ValidateOIDCSessionToken(raw); err == nil {
				auth.OIDC = &claimsSession{claims: claims}
			}
		}
	}

	identity, err := a.Resolver.Resolve(auth)
	if err != nil {
		logger.Error("identity_resolution_failed", map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed resolving identity")
	}

	// An identity without an id is no identity.
	if identity != nil && identity.ID != "" {
		c.Locals(currentIdentityKey, identity)
	}
	return c.Next()
}

func (a *AuthMiddleware) sessionToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token != authHeader && token != "" {
			return token
		}
	}
	return c.Cookies(SessionCookie)
}

func RequireAuth(c *fiber.Ctx) error {
	if GetCurrentIdentity(c) == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	return c.Next()
}

func AdminOnly(c *fiber.Ctx) error {
	identity := GetCurrentIdentity(c)
	if identity == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	if !identity.HasRole(models.RoleAdmin) {
		return utils.Error(c, fiber.StatusForbidden, "admin access required")
	}
	return c.Next()
}

func GetCurrentIdentity(c *fiber.Ctx) *services.Identity {
	value := c.Locals(currentIdentityKey)
	if value == nil {
		return nil
	}
	identity, ok := value.(*services.Identity)
	if !ok {
		return nil
	}
	return identity
}
