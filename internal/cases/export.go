package cases

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
	"github.com/aldoetobex/mediation-crm-backend/pkg/sanitize"
	"github.com/aldoetobex/mediation-crm-backend/pkg/serializers"
)

const (
	exportVersion = "1.0"
	// Free-text columns in the CSV are shortened to keep rows spreadsheet friendly.
	csvNotesMax = 500
)

// ExportResponse is the JSON export document.
type ExportResponse struct {
	ExportedAt time.Time                  `json:"exported_at"`
	Version    string                     `json:"version" example:"1.0"`
	TotalCases int                        `json:"total_cases"`
	Cases      []serializers.CaseResponse `json:"cases"`
}

var csvHeader = []string{
	"Reference", "Title", "Status",
	"Party 1 Name", "Party 1 Email", "Party 1 Phone",
	"Party 2 Name", "Party 2 Email", "Party 2 Phone",
	"Enquiry Date", "Voucher Used", "Internal Notes",
	"Created", "Updated", "Total Sessions",
}

// Export cases godoc
// @Summary      Export cases
// @Description  Download every case (honouring the list filters) as JSON or CSV.
// @Description  redact=true masks emails and phone numbers.
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Produce      text/csv
// @Param        format  query string false "json (default) or csv" Enums(json,csv)
// @Param        redact  query bool   false "mask contact details"
// @Param        status  query string false "exact status"
// @Param        search  query string false "substring of reference or title"
// @Success      200  {object}  ExportResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases/export/ [get]
func (h *Handler) Export(c *fiber.Ctx) error {
	format := strings.ToLower(strings.TrimSpace(c.Query("format", "json")))
	if format != "json" && format != "csv" {
		return fiber.NewError(fiber.StatusBadRequest, "format must be json or csv")
	}
	redact := c.QueryBool("redact", false)

	q, err := h.filtered(c)
	if err != nil {
		return err
	}
	var rows []models.Case
	if err := withChildren(q).Order("created_at DESC").Find(&rows).Error; err != nil {
		return err
	}
	if redact {
		for i := range rows {
			redactCase(&rows[i])
		}
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("mediation-cases-%s.%s", now.Format(models.DateLayout), format)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)

	if format == "csv" {
		body, err := casesCSV(rows)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(body)
	}

	out := ExportResponse{
		ExportedAt: now,
		Version:    exportVersion,
		TotalCases: len(rows),
		Cases:      make([]serializers.CaseResponse, 0, len(rows)),
	}
	for i := range rows {
		out.Cases = append(out.Cases, serializers.Case(&rows[i]))
	}
	return c.JSON(out)
}

// redactCase masks contact details on the case and its parties, and PII
// embedded in free-text notes.
func redactCase(cs *models.Case) {
	cs.Party1Email = mask(cs.Party1Email, "[redacted email]")
	cs.Party1Phone = mask(cs.Party1Phone, "[redacted phone]")
	cs.Party2Email = mask(cs.Party2Email, "[redacted email]")
	cs.Party2Phone = mask(cs.Party2Phone, "[redacted phone]")
	cs.Notes = sanitize.RedactPII(cs.Notes)
	cs.InternalNotes = sanitize.RedactPII(cs.InternalNotes)
	cs.PaymentNotes = sanitize.RedactPII(cs.PaymentNotes)

	for i := range cs.Parties {
		p := &cs.Parties[i]
		p.Email = mask(p.Email, "[redacted email]")
		p.Phone = mask(p.Phone, "[redacted phone]")
	}
	for i := range cs.Sessions {
		cs.Sessions[i].Notes = sanitize.RedactPII(cs.Sessions[i].Notes)
	}
	for i := range cs.Todos {
		cs.Todos[i].Description = sanitize.RedactPII(cs.Todos[i].Description)
	}
	for i := range cs.Appointments {
		cs.Appointments[i].Description = sanitize.RedactPII(cs.Appointments[i].Description)
	}
}

func mask(s, with string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	return with
}

func casesCSV(rows []models.Case) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range rows {
		cs := &rows[i]
		enquiry := ""
		if d := models.FormatDate(cs.EnquiryDate); d != nil {
			enquiry = *d
		}
		voucher := "No"
		if cs.VoucherUsed {
			voucher = "Yes"
		}
		rec := []string{
			cs.Reference, cs.Title, string(cs.Status),
			cs.Party1Name, cs.Party1Email, cs.Party1Phone,
			cs.Party2Name, cs.Party2Email, cs.Party2Phone,
			enquiry, voucher, sanitize.Summary(cs.InternalNotes, csvNotesMax),
			cs.CreatedAt.UTC().Format(models.DateLayout),
			cs.UpdatedAt.UTC().Format(models.DateLayout),
			strconv.Itoa(len(cs.Sessions)),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
