package handlers

import (
	"os"
	"strings"

	"github.com/fileharbor/backend/internal/middleware"
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// persistedUserID returns the caller's id as a uuid, refusing ephemeral
// identities whose id is not a valid foreign key.
func persistedUserID(identity *services.Identity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	if identity.IsEphemeral() {
		return uuid.Nil, apperr.Forbidden("Account is not synced yet; retry after sign-in completes.")
	}
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	return id, nil
}

func currentIdentity(c *fiber.Ctx) *services.Identity {
	return middleware.GetCurrentIdentity(c)
}

func writeFileBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
