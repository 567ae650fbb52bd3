package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// CaseStatus defines lifecycle states for a mediation case.
type CaseStatus string

const (
	CaseEnquiry CaseStatus = "ENQUIRY"
	CaseMIAM    CaseStatus = "MIAM"
	CaseOpen    CaseStatus = "OPEN"
	CasePaused  CaseStatus = "PAUSED"
	CaseClosed  CaseStatus = "CLOSED"
)

// CaseStatuses lists every valid status in display order.
var CaseStatuses = []CaseStatus{CaseEnquiry, CaseMIAM, CaseOpen, CasePaused, CaseClosed}

// Valid reports whether s is one of the known statuses.
func (s CaseStatus) Valid() bool {
	for _, v := range CaseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Case history actions.
const (
	ActionCreated       = "created"
	ActionStatusChanged = "status_changed"
	ActionTodoCompleted = "todo_completed"
	ActionTodoReopened  = "todo_reopened"
)

// DefaultSessionType is used when a session is created without a type.
const DefaultSessionType = "joint"

/* =============================== Entities =============================== */

// TimeStamped carries the identifier and timestamps shared by every entity.
// ID is assigned on insert and never changes afterwards.
type TimeStamped struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a fresh UUID when none was set.
func (t *TimeStamped) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// User is an account allowed to use the API.
type User struct {
	TimeStamped
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	Email        string `gorm:"size:254"`
	PasswordHash string `gorm:"not null"`
	// TokenVersion is embedded in issued tokens; bumping it retires every
	// refresh token issued before.
	TokenVersion int `gorm:"not null;default:0"`
}

// Case is a mediation matter tracked end to end.
type Case struct {
	TimeStamped
	Reference string     `gorm:"size:50;uniqueIndex;not null"`
	Title     string     `gorm:"size:255;not null"`
	Status    CaseStatus `gorm:"type:varchar(20);not null;default:'ENQUIRY';index"`
	Notes     string     `gorm:"type:text;not null;default:''"`

	// Legacy contact snapshots, kept alongside the Party rows.
	Party1Name  string `gorm:"size:200;not null;default:''"`
	Party1Email string `gorm:"size:254;not null;default:''"`
	Party1Phone string `gorm:"size:50;not null;default:''"`
	Party2Name  string `gorm:"size:200;not null;default:''"`
	Party2Email string `gorm:"size:254;not null;default:''"`
	Party2Phone string `gorm:"size:50;not null;default:''"`

	EnquiryDate   *datatypes.Date
	VoucherUsed   bool   `gorm:"not null;default:false"`
	InternalNotes string `gorm:"type:text;not null;default:''"`

	AmountOwed   Money  `gorm:"type:numeric(10,2);not null;default:0"`
	AmountPaid   Money  `gorm:"type:numeric(10,2);not null;default:0"`
	PaymentNotes string `gorm:"type:text;not null;default:''"`

	// Relations
	Parties      []Party       `gorm:"constraint:OnDelete:CASCADE"`
	Sessions     []Session     `gorm:"constraint:OnDelete:CASCADE"`
	Todos        []Todo        `gorm:"constraint:OnDelete:CASCADE"`
	Appointments []Appointment `gorm:"constraint:OnDelete:CASCADE"`
}

// AmountOutstanding is what is still owed on the case. It is never stored
// and may be negative when the case has been overpaid.
func (c Case) AmountOutstanding() Money {
	return c.AmountOwed.Sub(c.AmountPaid)
}

// Party is an individual involved in a case.
type Party struct {
	TimeStamped
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName   string    `gorm:"size:100;not null"`
	LastName    string    `gorm:"size:100;not null"`
	Email       string    `gorm:"size:254;not null;default:''"`
	Phone       string    `gorm:"size:50;not null;default:''"`
	IsApplicant bool      `gorm:"not null;default:false"`
}

// Session is a scheduled mediation meeting.
type Session struct {
	TimeStamped
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	SessionType string    `gorm:"size:50;not null;default:'joint'"`
	Start       time.Time `gorm:"not null"`
	End         time.Time `gorm:"not null"`
	Notes       string    `gorm:"type:text;not null;default:''"`
	IsCompleted bool      `gorm:"not null;default:false"`
}

// Todo is a task attached to a case.
type Todo struct {
	TimeStamped
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	DueDate     *datatypes.Date
	IsCompleted bool `gorm:"not null;default:false;index"`
	// CompletedAt is non-nil exactly when IsCompleted is true.
	CompletedAt *time.Time

	// Relation back to case (for case_reference / case_title)
	Case Case `gorm:"foreignKey:CaseID;references:ID"`
}

// SetCompleted couples the completion flag with its timestamp.
func (t *Todo) SetCompleted(done bool, now time.Time) {
	t.IsCompleted = done
	if done {
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
		return
	}
	t.CompletedAt = nil
}

// Toggle flips completion and returns the new state.
func (t *Todo) Toggle(now time.Time) bool {
	t.IsCompleted = !t.IsCompleted
	if t.IsCompleted {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	return t.IsCompleted
}

// Appointment is a calendar entry, optionally linked to a case.
type Appointment struct {
	TimeStamped
	CaseID      *uuid.UUID `gorm:"type:uuid;index"`
	Title       string     `gorm:"size:255;not null"`
	Description string     `gorm:"type:text;not null;default:''"`
	Start       time.Time  `gorm:"not null"`
	End         time.Time  `gorm:"not null"`
	Location    string     `gorm:"size:255;not null;default:''"`

	Case *Case `gorm:"foreignKey:CaseID;references:ID"`
}

// CaseHistory is an audit log entry for important case changes.
type CaseHistory struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CaseID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index"`           // nil for system actions
	Action    string     `gorm:"type:varchar(50);not null"` // see Action* constants
	OldStatus CaseStatus `gorm:"type:varchar(20)"`
	NewStatus CaseStatus `gorm:"type:varchar(20)"`
	Reason    string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (h *CaseHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// All returns every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Case{}, &Party{}, &Session{}, &Todo{}, &Appointment{}, &CaseHistory{},
	}
}
