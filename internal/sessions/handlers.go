package sessions

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

type SessionRequest struct {
	Case        *string    `json:"case" validate:"required,uuid"`
	SessionType *string    `json:"session_type" validate:"omitnil,max=50" example:"joint"`
	Start       *time.Time `json:"start" validate:"required" example:"2025-02-01T10:00:00Z"`
	End         *time.Time `json:"end" validate:"required" example:"2025-02-01T12:00:00Z"`
	Notes       *string    `json:"notes"`
	IsCompleted *bool      `json:"is_completed"`
}

func (in *SessionRequest) apply(s *models.Session) {
	if in.SessionType != nil {
		s.SessionType = strings.TrimSpace(*in.SessionType)
	}
	if s.SessionType == "" {
		s.SessionType = models.DefaultSessionType
	}
	// end before start is accepted as sent
	if in.Start != nil {
		s.Start = in.Start.UTC()
	}
	if in.End != nil {
		s.End = in.End.UTC()
	}
	if in.Notes != nil {
		s.Notes = *in.Notes
	}
	if in.IsCompleted != nil {
		s.IsCompleted = *in.IsCompleted
	}
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List sessions
// @Summary      List sessions
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        case      query string false "case id (uuid)"
// @Param        page      query int    false "page (enables the paginated envelope)"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {array}   serializers.SessionResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /sessions/ [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q, err := utils.FilterByCase(c, h.db.WithContext(c.UserContext()))
	if err != nil {
		return err
	}
	return utils.List(c, q, serializers.Session)
}

// Create session
// @Summary      Create session
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SessionRequest  true  "Session payload"
// @Success      201  {object}  serializers.SessionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /sessions/ [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in SessionRequest
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

	s := models.Session{CaseID: caseID}
	in.apply(&s)
	if err := h.db.WithContext(c.UserContext()).Create(&s).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serializers.Session(&s))
}

// Get session
// @Summary      Session detail
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "session id (uuid)"
// @Success      200  {object}  serializers.SessionResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /sessions/{id}/ [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var s models.Session
	if err := h.db.WithContext(c.UserContext()).First(&s, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(serializers.Session(&s))
}

// Update session
// @Summary      Update session
// @Description  PUT requires case, start and end; PATCH accepts any subset
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "session id (uuid)"
// @Param        payload  body  SessionRequest  true  "Fields to change"
// @Success      200  {object}  serializers.SessionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /sessions/{id}/ [put]
// @Router       /sessions/{id}/ [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var in SessionRequest
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

	var s models.Session
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error; err != nil {
			return err
		}
		if newCase != uuid.Nil {
			s.CaseID = newCase
		}
		in.apply(&s)
		return tx.Save(&s).Error
	})
	if err != nil {
		return err
	}
	return c.JSON(serializers.Session(&s))
}

// Delete session
// @Summary      Delete session
// @Tags         sessions
// @Security     BearerAuth
// @Param        id   path string true "session id (uuid)"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /sessions/{id}/ [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Delete(&models.Session{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
