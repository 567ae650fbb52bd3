package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

// Respond writes a 400 with the field error map.
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}

// RespondField is Respond for a single field error.
func RespondField(c *fiber.Ctx, field, msg string) error {
	return Respond(c, map[string][]string{field: {msg}})
}
