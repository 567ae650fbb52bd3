package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/validation"
)

// LogCaseHistory inserts an audit record into case_histories.
// Used to track status changes and todo completion on a case.
// Errors are ignored on purpose (best-effort logging).
func LogCaseHistory(
	ctx context.Context,
	db *gorm.DB,
	caseID uuid.UUID,
	actorID *uuid.UUID,
	action string,
	oldS, newS models.CaseStatus,
	reason string,
) {
	_ = db.WithContext(ctx).Create(&models.CaseHistory{
		CaseID:    caseID,
		ActorID:   actorID,
		Action:    action,
		OldStatus: oldS,
		NewStatus: newS,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// CaseExists reports whether a case with the given id is stored.
func CaseExists(ctx context.Context, db *gorm.DB, id uuid.UUID) (bool, error) {
	var cnt int64
	if err := db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// MsgCaseNotFound is the field error for a case reference that does not resolve.
func MsgCaseNotFound(id uuid.UUID) string {
	return fmt.Sprintf("Invalid pk %q - object does not exist.", id.String())
}

// ResolveCase parses and checks the "case" field of a request body. When it
// is malformed or unknown the 400 is written here and ok is false.
func ResolveCase(c *fiber.Ctx, db *gorm.DB, raw string) (id uuid.UUID, ok bool, err error) {
	id, perr := uuid.Parse(strings.TrimSpace(raw))
	if perr != nil {
		return uuid.Nil, false, validation.RespondField(c, "case", "Must be a valid UUID")
	}
	found, err := CaseExists(c.UserContext(), db, id)
	if err != nil {
		return uuid.Nil, false, err
	}
	if !found {
		return uuid.Nil, false, validation.RespondField(c, "case", MsgCaseNotFound(id))
	}
	return id, true, nil
}
