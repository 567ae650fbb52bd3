package appointments

import (
	"strings"
	"time"

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

// AppointmentRequest is the writable field set of an appointment. case may
// be null or omitted for appointments that do not belong to a case.
type AppointmentRequest struct {
	Case        models.Nullable[string] `json:"case" swaggertype:"string" example:"6f1c2a8e-4b8f-4a59-9a50-0d6b7c1f2e11"`
	Title       *string                 `json:"title" validate:"required,notblank,max=255" example:"Intake call"`
	Description *string                 `json:"description"`
	Start       *time.Time              `json:"start" validate:"required" example:"2025-02-01T10:00:00Z"`
	End         *time.Time              `json:"end" validate:"required" example:"2025-02-01T11:00:00Z"`
	Location    *string                 `json:"location" validate:"omitnil,max=255"`
}

func (in *AppointmentRequest) apply(a *models.Appointment) {
	if in.Title != nil {
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Start != nil {
		a.Start = in.Start.UTC()
	}
	if in.End != nil {
		a.End = in.End.UTC()
	}
	if in.Location != nil {
		a.Location = *in.Location
	}
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// resolveCase turns the nullable case field into a column value. changed is
// false when the key was absent. ok is false once a 400 has been written.
func (h *Handler) resolveCase(c *fiber.Ctx, in *AppointmentRequest) (id *uuid.UUID, changed, ok bool, err error) {
	if !in.Case.Set {
		return nil, false, true, nil
	}
	if !in.Case.Valid || strings.TrimSpace(in.Case.Value) == "" {
		return nil, true, true, nil
	}
	caseID, ok, err := utils.ResolveCase(c, h.db, in.Case.Value)
	if err != nil || !ok {
		return nil, false, false, err
	}
	return &caseID, true, true, nil
}

func (h *Handler) load(c *fiber.Ctx, id uuid.UUID) (*models.Appointment, error) {
	var a models.Appointment
	if err := h.db.WithContext(c.UserContext()).Preload("Case").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// List appointments
// @Summary      List appointments
// @Tags         appointments
// @Security     BearerAuth
// @Produce      json
// @Param        case      query string false "case id (uuid)"
// @Param        page      query int    false "page (enables the paginated envelope)"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {array}   serializers.AppointmentResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /appointments/ [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q, err := utils.FilterByCase(c, h.db.WithContext(c.UserContext()))
	if err != nil {
		return err
	}
	return utils.List(c, q.Preload("Case"), serializers.Appointment)
}

// Create appointment
// @Summary      Create appointment
// @Tags         appointments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  AppointmentRequest  true  "Appointment payload"
// @Success      201  {object}  serializers.AppointmentResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /appointments/ [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in AppointmentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	caseID, _, ok, err := h.resolveCase(c, &in)
	if err != nil || !ok {
		return err
	}

	a := models.Appointment{CaseID: caseID}
	in.apply(&a)
	if err := h.db.WithContext(c.UserContext()).Omit(clause.Associations).Create(&a).Error; err != nil {
		return err
	}

	out, err := h.load(c, a.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serializers.Appointment(out))
}

// Get appointment
// @Summary      Appointment detail
// @Tags         appointments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "appointment id (uuid)"
// @Success      200  {object}  serializers.AppointmentResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /appointments/{id}/ [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	a, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Appointment(a))
}

// Update appointment
// @Summary      Update appointment
// @Description  PUT requires title, start and end; PATCH accepts any subset. An omitted case is kept; case: null detaches.
// @Tags         appointments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "appointment id (uuid)"
// @Param        payload  body  AppointmentRequest  true  "Fields to change"
// @Success      200  {object}  serializers.AppointmentResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /appointments/{id}/ [put]
// @Router       /appointments/{id}/ [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var in AppointmentRequest
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
	caseID, changed, ok, err := h.resolveCase(c, &in)
	if err != nil || !ok {
		return err
	}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var a models.Appointment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		if changed {
			a.CaseID = caseID
		}
		in.apply(&a)
		return tx.Omit(clause.Associations).Save(&a).Error
	})
	if err != nil {
		return err
	}

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Appointment(out))
}

// Delete appointment
// @Summary      Delete appointment
// @Tags         appointments
// @Security     BearerAuth
// @Param        id   path string true "appointment id (uuid)"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /appointments/{id}/ [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Delete(&models.Appointment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
