package parties

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/serializers"
	"github.com/aldoetobex/mediation-crm-backend/pkg/utils"
	"github.com/aldoetobex/mediation-crm-backend/pkg/validation"
)

// ===== DTOs =====

type PartyRequest struct {
	Case        *string `json:"case" validate:"required,uuid" example:"6f1c2a8e-4b8f-4a59-9a50-0d6b7c1f2e11"`
	FirstName   *string `json:"first_name" validate:"required,notblank,max=100" example:"Jane"`
	LastName    *string `json:"last_name" validate:"required,notblank,max=100" example:"Smith"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
	Phone       *string `json:"phone" validate:"omitnil,max=50"`
	IsApplicant *bool   `json:"is_applicant"`
}

func (in *PartyRequest) apply(p *models.Party) {
	if in.FirstName != nil {
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		p.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.IsApplicant != nil {
		p.IsApplicant = *in.IsApplicant
	}
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List parties
// @Summary      List parties
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        case      query string false "case id (uuid)"
// @Param        page      query int    false "page (enables the paginated envelope)"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {array}   serializers.PartyResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /parties/ [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q, err := utils.FilterByCase(c, h.db.WithContext(c.UserContext()))
	if err != nil {
		return err
	}
	return utils.List(c, q, serializers.Party)
}

// Create party
// @Summary      Create party
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  PartyRequest  true  "Party payload"
// @Success      201  {object}  serializers.PartyResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /parties/ [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in PartyRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	caseID, ok, err := utils.ResolveCase(c, h.db, *in.Case)
	if err != nil || !ok {
		return err
	}

	p := models.Party{CaseID: caseID}
	in.apply(&p)
	if err := h.db.WithContext(c.UserContext()).Create(&p).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serializers.Party(&p))
}

// Get party
// @Summary      Party detail
// @Tags         parties
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "party id (uuid)"
// @Success      200  {object}  serializers.PartyResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /parties/{id}/ [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var p models.Party
	if err := h.db.WithContext(c.UserContext()).First(&p, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(serializers.Party(&p))
}

// Update party
// @Summary      Update party
// @Description  PUT requires case, first_name and last_name; PATCH accepts any subset
// @Tags         parties
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string        true  "party id (uuid)"
// @Param        payload  body  PartyRequest  true  "Fields to change"
// @Success      200  {object}  serializers.PartyResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /parties/{id}/ [put]
// @Router       /parties/{id}/ [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var in PartyRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validate := validation.Validate
	if c.Method() == fiber.MethodPatch {
		validate = validation.ValidatePartial
	}
	if errs, _ := validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var newCase uuid.UUID
	if in.Case != nil {
		var ok bool
		if newCase, ok, err = utils.ResolveCase(c, h.db, *in.Case); err != nil || !ok {
			return err
		}
	}

	var p models.Party
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		if newCase != uuid.Nil {
			p.CaseID = newCase
		}
		in.apply(&p)
		return tx.Save(&p).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(serializers.Party(&p))
}

// Delete party
// @Summary      Delete party
// @Tags         parties
// @Security     BearerAuth
// @Param        id   path string true "party id (uuid)"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /parties/{id}/ [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Delete(&models.Party{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
