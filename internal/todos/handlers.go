package todos

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/mediation-crm-backend/internal/auth"
	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/serializers"
	"github.com/aldoetobex/mediation-crm-backend/pkg/utils"
	"github.com/aldoetobex/mediation-crm-backend/pkg/validation"
)

// ===== DTOs =====

// TodoRequest is the writable field set of a todo. completed_at is derived
// from is_completed and cannot be sent.
type TodoRequest struct {
	Case        *string                 `json:"case" validate:"required,uuid"`
	Title       *string                 `json:"title" validate:"required,notblank,max=255" example:"Send MIAM forms"`
	Description *string                 `json:"description"`
	DueDate     models.Nullable[string] `json:"due_date" swaggertype:"string" example:"2025-01-31"`
	IsCompleted *bool                   `json:"is_completed"`
}

func (in *TodoRequest) apply(t *models.Todo, now time.Time) map[string][]string {
	var errs map[string][]string
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.DueDate.Set {
		t.DueDate = nil
		if in.DueDate.Valid && strings.TrimSpace(in.DueDate.Value) != "" {
			d, err := models.ParseDate(in.DueDate.Value)
			if err != nil {
				errs = validation.Add(errs, "due_date", "Date has wrong format. Use YYYY-MM-DD")
			} else {
				t.DueDate = d
			}
		}
	}
	if in.IsCompleted != nil {
		t.SetCompleted(*in.IsCompleted, now)
	}
	return errs
}

type Handler struct {
	db  *gorm.DB
	now func() time.Time
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// load fetches a todo with its case for case_reference / case_title.
func (h *Handler) load(c *fiber.Ctx, id uuid.UUID) (*models.Todo, error) {
	var t models.Todo
	if err := h.db.WithContext(c.UserContext()).Preload("Case").First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// completionAction maps a completion flip to its history action.
func completionAction(done bool) string {
	if done {
		return models.ActionTodoCompleted
	}
	return models.ActionTodoReopened
}

// List todos
// @Summary      List todos
// @Description  Newest first; filter by case and completion
// @Tags         todos
// @Security     BearerAuth
// @Produce      json
// @Param        case          query string false "case id (uuid)"
// @Param        is_completed  query bool   false "completion state"
// @Param        page          query int    false "page (enables the paginated envelope)"
// @Param        pageSize      query int    false "pageSize"
// @Success      200  {array}   serializers.TodoResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /todos/ [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q, err := utils.FilterByCase(c, h.db.WithContext(c.UserContext()))
	if err != nil {
		return err
	}
	done, err := utils.QueryBool(c, "is_completed")
	if err != nil {
		return err
	}
	if done != nil {
		q = q.Where("is_completed = ?", *done)
	}
	return utils.List(c, q.Preload("Case"), serializers.Todo)
}

// Create todo
// @Summary      Create todo
// @Tags         todos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  TodoRequest  true  "Todo payload"
// @Success      201  {object}  serializers.TodoResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /todos/ [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in TodoRequest
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

	t := models.Todo{CaseID: caseID}
	if errs := in.apply(&t, h.now()); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.db.WithContext(c.UserContext()).Omit(clause.Associations).Create(&t).Error; err != nil {
		return err
	}

	out, err := h.load(c, t.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serializers.Todo(out))
}

// Get todo
// @Summary      Todo detail
// @Tags         todos
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "todo id (uuid)"
// @Success      200  {object}  serializers.TodoResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /todos/{id}/ [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	t, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Todo(t))
}

// Update todo
// @Summary      Update todo
// @Description  PUT requires case and title; PATCH accepts any subset.
// @Description  Setting is_completed keeps completed_at in step.
// @Tags         todos
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "todo id (uuid)"
// @Param        payload  body  TodoRequest  true  "Fields to change"
// @Success      200  {object}  serializers.TodoResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /todos/{id}/ [put]
// @Router       /todos/{id}/ [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	var in TodoRequest
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

	var (
		t         models.Todo
		wasDone   bool
		fieldErrs map[string][]string
	)
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			return err
		}
		wasDone = t.IsCompleted
		if newCase != uuid.Nil {
			t.CaseID = newCase
		}
		if fieldErrs = in.apply(&t, h.now()); fieldErrs != nil {
			return nil
		}
		return tx.Omit(clause.Associations).Save(&t).Error
	})
	if err != nil {
		return err
	}
	if fieldErrs != nil {
		return validation.Respond(c, fieldErrs)
	}
	if t.IsCompleted != wasDone {
		utils.LogCaseHistory(c.UserContext(), h.db, t.CaseID, auth.ActorID(c),
			completionAction(t.IsCompleted), "", "", t.Title)
	}

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Todo(out))
}

// Delete todo
// @Summary      Delete todo
// @Tags         todos
// @Security     BearerAuth
// @Param        id   path string true "todo id (uuid)"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /todos/{id}/ [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	res := h.db.WithContext(c.UserContext()).Delete(&models.Todo{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Toggle todo completion
// @Summary      Toggle todo completion
// @Description  Flips is_completed; completed_at is set to now or cleared accordingly
// @Tags         todos
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "todo id (uuid)"
// @Success      200  {object}  serializers.TodoResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /todos/{id}/toggle_complete/ [post]
func (h *Handler) ToggleComplete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}

	var t models.Todo
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		// Row lock: two concurrent toggles apply one after the other.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			return err
		}
		t.Toggle(h.now())
		var completedAt any // NULL when reopened
		if t.CompletedAt != nil {
			completedAt = *t.CompletedAt
		}
		return tx.Model(&t).Omit(clause.Associations).Updates(map[string]any{
			"is_completed": t.IsCompleted,
			"completed_at": completedAt,
		}).Error
	})
	if err != nil {
		return err
	}
	utils.LogCaseHistory(c.UserContext(), h.db, t.CaseID, auth.ActorID(c),
		completionAction(t.IsCompleted), "", "", t.Title)

	out, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Todo(out))
}
