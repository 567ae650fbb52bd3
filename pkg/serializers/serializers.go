// Package serializers maps stored entities to their JSON representations.
// Every response field is declared here; derived and denormalised fields
// (amount_outstanding, case_reference, case_title) are read-only and exist
// only on the way out.
package serializers

import (
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

type PartyResponse struct {
	ID          uuid.UUID `json:"id"`
	Case        uuid.UUID `json:"case"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	IsApplicant bool      `json:"is_applicant"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SessionResponse struct {
	ID          uuid.UUID `json:"id"`
	Case        uuid.UUID `json:"case"`
	SessionType string    `json:"session_type"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Notes       string    `json:"notes"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TodoResponse struct {
	ID            uuid.UUID  `json:"id"`
	Case          uuid.UUID  `json:"case"`
	CaseReference string     `json:"case_reference"`
	CaseTitle     string     `json:"case_title"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	DueDate       *string    `json:"due_date" example:"2025-01-31"`
	IsCompleted   bool       `json:"is_completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	Case          *uuid.UUID `json:"case"`
	CaseReference *string    `json:"case_reference"`
	CaseTitle     *string    `json:"case_title"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Location      string     `json:"location"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CaseResponse struct {
	ID        uuid.UUID         `json:"id"`
	Reference string            `json:"reference" example:"C-100"`
	Title     string            `json:"title" example:"Smith v Smith"`
	Status    models.CaseStatus `json:"status" example:"ENQUIRY"`
	Notes     string            `json:"notes"`

	Party1Name  string `json:"party1_name"`
	Party1Email string `json:"party1_email"`
	Party1Phone string `json:"party1_phone"`
	Party2Name  string `json:"party2_name"`
	Party2Email string `json:"party2_email"`
	Party2Phone string `json:"party2_phone"`

	EnquiryDate   *string `json:"enquiry_date" example:"2025-01-31"`
	VoucherUsed   bool    `json:"voucher_used"`
	InternalNotes string  `json:"internal_notes"`

	AmountOwed        models.Money `json:"amount_owed" swaggertype:"string" example:"500.00"`
	AmountPaid        models.Money `json:"amount_paid" swaggertype:"string" example:"200.00"`
	AmountOutstanding models.Money `json:"amount_outstanding" swaggertype:"string" example:"300.00"`
	PaymentNotes      string       `json:"payment_notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Parties      []PartyResponse       `json:"parties"`
	Sessions     []SessionResponse     `json:"sessions"`
	Todos        []TodoResponse        `json:"todos"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type CaseHistoryResponse struct {
	ID        uuid.UUID         `json:"id"`
	ActorID   *uuid.UUID        `json:"actor_id"`
	Action    string            `json:"action"`
	OldStatus models.CaseStatus `json:"old_status"`
	NewStatus models.CaseStatus `json:"new_status"`
	Reason    string            `json:"reason"`
	CreatedAt time.Time         `json:"created_at"`
}

func Party(p *models.Party) PartyResponse {
	return PartyResponse{
		ID:          p.ID,
		Case:        p.CaseID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		IsApplicant: p.IsApplicant,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func Session(s *models.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Case:        s.CaseID,
		SessionType: s.SessionType,
		Start:       s.Start,
		End:         s.End,
		Notes:       s.Notes,
		IsCompleted: s.IsCompleted,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Todo expects t.Case to be loaded; the case fields are copied from it.
func Todo(t *models.Todo) TodoResponse {
	return TodoResponse{
		ID:            t.ID,
		Case:          t.CaseID,
		CaseReference: t.Case.Reference,
		CaseTitle:     t.Case.Title,
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       models.FormatDate(t.DueDate),
		IsCompleted:   t.IsCompleted,
		CompletedAt:   t.CompletedAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Appointment expects a.Case to be loaded when a.CaseID is set.
func Appointment(a *models.Appointment) AppointmentResponse {
	out := AppointmentResponse{
		ID:          a.ID,
		Case:        a.CaseID,
		Title:       a.Title,
		Description: a.Description,
		Start:       a.Start,
		End:         a.End,
		Location:    a.Location,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.Case != nil {
		ref, title := a.Case.Reference, a.Case.Title
		out.CaseReference = &ref
		out.CaseTitle = &title
	}
	return out
}

// Case renders a case with its loaded children. Nil child slices become [].
// Children of the case carry the parent's reference and title.
func Case(c *models.Case) CaseResponse {
	out := CaseResponse{
		ID:                c.ID,
		Reference:         c.Reference,
		Title:             c.Title,
		Status:            c.Status,
		Notes:             c.Notes,
		Party1Name:        c.Party1Name,
		Party1Email:       c.Party1Email,
		Party1Phone:       c.Party1Phone,
		Party2Name:        c.Party2Name,
		Party2Email:       c.Party2Email,
		Party2Phone:       c.Party2Phone,
		EnquiryDate:       models.FormatDate(c.EnquiryDate),
		VoucherUsed:       c.VoucherUsed,
		InternalNotes:     c.InternalNotes,
		AmountOwed:        c.AmountOwed,
		AmountPaid:        c.AmountPaid,
		AmountOutstanding: c.AmountOutstanding(),
		PaymentNotes:      c.PaymentNotes,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		Parties:           make([]PartyResponse, 0, len(c.Parties)),
		Sessions:          make([]SessionResponse, 0, len(c.Sessions)),
		Todos:             make([]TodoResponse, 0, len(c.Todos)),
		Appointments:      make([]AppointmentResponse, 0, len(c.Appointments)),
	}
	for i := range c.Parties {
		out.Parties = append(out.Parties, Party(&c.Parties[i]))
	}
	for i := range c.Sessions {
		out.Sessions = append(out.Sessions, Session(&c.Sessions[i]))
	}
	for i := range c.Todos {
		t := c.Todos[i]
		t.Case = models.Case{Reference: c.Reference, Title: c.Title}
		out.Todos = append(out.Todos, Todo(&t))
	}
	for i := range c.Appointments {
		a := c.Appointments[i]
		a.Case = &models.Case{Reference: c.Reference, Title: c.Title}
		out.Appointments = append(out.Appointments, Appointment(&a))
	}
	return out
}

func CaseHistory(h *models.CaseHistory) CaseHistoryResponse {
	return CaseHistoryResponse{
		ID:        h.ID,
		ActorID:   h.ActorID,
		Action:    h.Action,
		OldStatus: h.OldStatus,
		NewStatus: h.NewStatus,
		Reason:    h.Reason,
		CreatedAt: h.CreatedAt,
	}
}
