package handlers

import (
	"github.com/fileharbor/backend/internal/services"
	"github.com/fileharbor/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AccessRulesHandler struct {
	Access *services.AccessService
}

func NewAccessRulesHandler(access *services.AccessService) *AccessRulesHandler {
	return &AccessRulesHandler{Access: access}
}

func (h *AccessRulesHandler) List(c *fiber.Ctx) error {
	rules, err := h.Access.GetRules()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing rules")
	}
	return utils.Success(c, fiber.StatusOK, rules)
}

type setRulesRequest struct {
	Rules []struct {
		Path        string `json:"path"`
		Permissions string `json:"permissions"`
		Recursive   bool   `json:"recursive"`
	} `json:"rules"`
}

// Set replaces the whole rule list; rule evaluation order is derived from
// path specificity, not submission order.
func (h *AccessRulesHandler) Set(c *fiber.Ctx) error {
	var req setRulesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	inputs := make([]services.AccessRuleInput, 0, len(req.Rules))
	for _, r := range req.Rules {
		inputs = append(inputs, services.AccessRuleInput{
			Path:        r.Path,
			Permissions: r.Permissions,
			Recursive:   r.Recursive,
		})
	}

	rules, err := h.Access.SetRules(inputs)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.StatusOK, rules)
}
