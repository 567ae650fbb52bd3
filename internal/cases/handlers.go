package cases

import (
	"encoding/json"
	"errors"
	"strings"

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

// CaseRequest is the writable field set of a case. Pointer fields are
// optional on PATCH; id, timestamps and amount_outstanding are not accepted.
type CaseRequest struct {
	Reference *string            `json:"reference" validate:"required,notblank,max=50" example:"C-100"`
	Title     *string            `json:"title" validate:"required,notblank,max=255" example:"Smith v Smith"`
	Status    *models.CaseStatus `json:"status" validate:"omitnil,casestatus" swaggertype:"string" enums:"ENQUIRY,MIAM,OPEN,PAUSED,CLOSED"`
	Notes     *string            `json:"notes"`

	Party1Name  *string `json:"party1_name" validate:"omitnil,max=200"`
	Party1Email *string `json:"party1_email" validate:"omitempty,email,max=254"`
	Party1Phone *string `json:"party1_phone" validate:"omitnil,max=50"`
	Party2Name  *string `json:"party2_name" validate:"omitnil,max=200"`
	Party2Email *string `json:"party2_email" validate:"omitempty,email,max=254"`
	Party2Phone *string `json:"party2_phone" validate:"omitnil,max=50"`

	EnquiryDate   models.Nullable[string] `json:"enquiry_date" swaggertype:"string" example:"2025-01-31"`
	VoucherUsed   *bool                   `json:"voucher_used"`
	InternalNotes *string                 `json:"internal_notes"`

	// Money arrives raw so a bad decimal is reported against its field.
	AmountOwed   models.Nullable[json.RawMessage] `json:"amount_owed" swaggertype:"string" example:"500.00"`
	AmountPaid   models.Nullable[json.RawMessage] `json:"amount_paid" swaggertype:"string" example:"200.00"`
	PaymentNotes *string                          `json:"payment_notes"`
}

// apply copies every field that was sent onto cs.
func (in *CaseRequest) apply(cs *models.Case) map[string][]string {
	var errs map[string][]string

	setString(&cs.Reference, in.Reference)
	setString(&cs.Title, in.Title)
	if in.Status != nil {
		cs.Status = *in.Status
	}
	setString(&cs.Notes, in.Notes)
	setString(&cs.Party1Name, in.Party1Name)
	setString(&cs.Party1Email, in.Party1Email)
	setString(&cs.Party1Phone, in.Party1Phone)
	setString(&cs.Party2Name, in.Party2Name)
	setString(&cs.Party2Email, in.Party2Email)
	setString(&cs.Party2Phone, in.Party2Phone)

	if in.EnquiryDate.Set {
		cs.EnquiryDate = nil
		if in.EnquiryDate.Valid && strings.TrimSpace(in.EnquiryDate.Value) != "" {
			d, err := models.ParseDate(in.EnquiryDate.Value)
			if err != nil {
				errs = validation.Add(errs, "enquiry_date", "Date has wrong format. Use YYYY-MM-DD")
			} else {
				cs.EnquiryDate = d
			}
		}
	}
	if in.VoucherUsed != nil {
		cs.VoucherUsed = *in.VoucherUsed
	}
	setString(&cs.InternalNotes, in.InternalNotes)
	errs = setMoney(errs, "amount_owed", &cs.AmountOwed, in.AmountOwed)
	errs = setMoney(errs, "amount_paid", &cs.AmountPaid, in.AmountPaid)
	setString(&cs.PaymentNotes, in.PaymentNotes)

	cs.Reference = strings.TrimSpace(cs.Reference)
	cs.Title = strings.TrimSpace(cs.Title)
	cs.Party1Email = strings.TrimSpace(cs.Party1Email)
	cs.Party2Email = strings.TrimSpace(cs.Party2Email)
	return errs
}

// setMoney parses a sent money field onto dst. null is rejected.
func setMoney(errs map[string][]string, field string, dst *models.Money, src models.Nullable[json.RawMessage]) map[string][]string {
	if !src.Set {
		return errs
	}
	if !src.Valid {
		return validation.Add(errs, field, "This field may not be null")
	}
	var m models.Money
	if err := m.UnmarshalJSON(src.Value); err != nil {
		return validation.Add(errs, field, models.MoneyMessage(err))
	}
	*dst = m
	return errs
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

const msgDuplicateReference = "case with this reference already exists."

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// withChildren preloads every child collection newest first.
func withChildren(db *gorm.DB) *gorm.DB {
	newest := func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }
	return db.
		Preload("Parties", newest).
		Preload("Sessions", newest).
		Preload("Todos", newest).
		Preload("Appointments", newest)
}

// load fetches one case with its children; missing → 404.
func (h *Handler) load(c *fiber.Ctx, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	err := withChildren(h.db.WithContext(c.UserContext())).First(&cs, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, err
	}
	return &cs, nil
}

// referenceTaken reports whether another case already uses ref.
func referenceTaken(tx *gorm.DB, ref string, exclude uuid.UUID) (bool, error) {
	var cnt int64
	q := tx.Model(&models.Case{}).Where("reference = ?", ref)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// List Cases godoc
// @Summary      List cases
// @Description  All cases newest first, each with parties, sessions, todos and appointments
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        status    query string false "exact status" Enums(ENQUIRY,MIAM,OPEN,PAUSED,CLOSED)
// @Param        search    query string false "substring of reference or title"
// @Param        page      query int    false "page (enables the paginated envelope)"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {array}   serializers.CaseResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases/ [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q, err := h.filtered(c)
	if err != nil {
		return err
	}
	return utils.List(c, withChildren(q), serializers.Case)
}

// filtered applies ?status= and ?search= to the case query.
func (h *Handler) filtered(c *fiber.Ctx) (*gorm.DB, error) {
	q := h.db.WithContext(c.UserContext()).Model(&models.Case{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		st := models.CaseStatus(strings.ToUpper(status))
		if !st.Valid() {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
		q = q.Where("status = ?", st)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + escapeLike(strings.ToLower(search)) + "%"
		q = q.Where("LOWER(reference) LIKE ? OR LOWER(title) LIKE ?", like, like)
	}
	return q, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create Case godoc
// @Summary      Create case
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CaseRequest  true  "Case payload"
// @Success      201  {object}  serializers.CaseResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases/ [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	// Validation (Laravel-style response)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	cs := models.Case{Status: models.CaseEnquiry}
	if errs := in.apply(&cs); errs != nil {
		return validation.Respond(c, errs)
	}

	db := h.db.WithContext(c.UserContext())
	taken, err := referenceTaken(db, cs.Reference, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return validation.RespondField(c, "reference", msgDuplicateReference)
	}
	if err := db.Omit(clause.Associations).Create(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return validation.RespondField(c, "reference", msgDuplicateReference)
		}
		return err
	}
	utils.LogCaseHistory(c.UserContext(), h.db, cs.ID, auth.ActorID(c),
		models.ActionCreated, "", cs.Status, "")

	out, err := h.load(c, cs.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serializers.Case(out))
}

// Get case detail
// @Summary      Case detail
// @Description  Case with nested parties, sessions, todos, appointments and amount_outstanding
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  serializers.CaseResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/ [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	cs, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Case(cs))
}

// Update case
// @Summary      Update case
// @Description  PUT requires reference and title; PATCH accepts any subset of fields
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "case id (uuid)"
// @Param        payload  body  CaseRequest  true  "Fields to change"
// @Success      200  {object}  serializers.CaseResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/ [put]
// @Router       /cases/{id}/ [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}

	var in CaseRequest
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

	var (
		oldStatus, newStatus models.CaseStatus
		fieldErrs            map[string][]string
	)
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		// Lock the row: concurrent updates serialise, last write wins.
		var cs models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cs, "id = ?", id).Error; err != nil {
			return err
		}
		oldStatus = cs.Status

		if fieldErrs = in.apply(&cs); fieldErrs != nil {
			return nil
		}
		if in.Reference != nil {
			taken, err := referenceTaken(tx, cs.Reference, cs.ID)
			if err != nil {
				return err
			}
			if taken {
				fieldErrs = validation.Add(nil, "reference", msgDuplicateReference)
				return nil
			}
		}
		newStatus = cs.Status
		return tx.Omit(clause.Associations).Save(&cs).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return validation.RespondField(c, "reference", msgDuplicateReference)
		}
		return err
	}
	if fieldErrs != nil {
		return validation.Respond(c, fieldErrs)
	}

	if newStatus != oldStatus {
		utils.LogCaseHistory(c.UserContext(), h.db, id, auth.ActorID(c),
			models.ActionStatusChanged, oldStatus, newStatus, "")
	}

	cs, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.JSON(serializers.Case(cs))
}

// Delete case
// @Summary      Delete case
// @Description  Deletes the case together with its parties, sessions, todos, appointments and history
// @Tags         cases
// @Security     BearerAuth
// @Param        id   path string true "case id (uuid)"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/ [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	if err := DeleteCascade(h.db.WithContext(c.UserContext()), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteCascade removes a case and every dependent row in one transaction.
// It returns gorm.ErrRecordNotFound when the case does not exist.
func DeleteCascade(db *gorm.DB, id uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var cs models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&cs, "id = ?", id).Error; err != nil {
			return err
		}
		for _, dep := range []any{
			&models.Todo{}, &models.Appointment{}, &models.Session{},
			&models.Party{}, &models.CaseHistory{},
		} {
			if err := tx.Where("case_id = ?", id).Delete(dep).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Case{}, "id = ?", id).Error
	})
}

// Case history
// @Summary      Case history
// @Description  Audit trail of a case, newest first
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}   serializers.CaseHistoryResponse
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/history/ [get]
func (h *Handler) History(c *fiber.Ctx) error {
	id, err := utils.ParseID(c)
	if err != nil {
		return err
	}
	db := h.db.WithContext(c.UserContext())

	var cnt int64
	if err := db.Model(&models.Case{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return fiber.ErrNotFound
	}
	return utils.List(c, db.Where("case_id = ?", id), serializers.CaseHistory)
}
