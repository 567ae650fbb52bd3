package serializers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

func TestCaseRendersDerivedAndNestedFields(t *testing.T) {
	caseID := uuid.New()
	due, _ := models.ParseDate("2025-03-01")
	cs := models.Case{
		TimeStamped: models.TimeStamped{ID: caseID},
		Reference:   "C-100",
		Title:       "Smith v Smith",
		Status:      models.CaseEnquiry,
		AmountOwed:  models.MustMoney("500.00"),
		AmountPaid:  models.MustMoney("200.00"),
		Todos: []models.Todo{{
			TimeStamped: models.TimeStamped{ID: uuid.New()},
			CaseID:      caseID,
			Title:       "Send forms",
			DueDate:     due,
		}},
		Appointments: []models.Appointment{{
			TimeStamped: models.TimeStamped{ID: uuid.New()},
			CaseID:      &caseID,
			Title:       "Intake",
		}},
	}

	out := Case(&cs)
	assert.Equal(t, "300.00", out.AmountOutstanding.String())
	require.Len(t, out.Todos, 1)
	assert.Equal(t, "C-100", out.Todos[0].CaseReference)
	assert.Equal(t, "Smith v Smith", out.Todos[0].CaseTitle)
	assert.Equal(t, "2025-03-01", *out.Todos[0].DueDate)
	require.Len(t, out.Appointments, 1)
	assert.Equal(t, "C-100", *out.Appointments[0].CaseReference)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "500.00", m["amount_owed"])
	assert.Equal(t, "300.00", m["amount_outstanding"])
	assert.Nil(t, m["enquiry_date"])
	// empty children are [] rather than null
	assert.Equal(t, []any{}, m["parties"])
	assert.Equal(t, []any{}, m["sessions"])
}

func TestAppointmentWithoutCase(t *testing.T) {
	a := models.Appointment{Title: "Team sync", Start: time.Now(), End: time.Now()}
	out := Appointment(&a)
	assert.Nil(t, out.Case)
	assert.Nil(t, out.CaseReference)
	assert.Nil(t, out.CaseTitle)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"case":null`)
	assert.Contains(t, string(raw), `"case_reference":null`)
}

func TestTodoCompletion(t *testing.T) {
	now := time.Now().UTC()
	td := models.Todo{Title: "x", Case: models.Case{Reference: "C-1", Title: "T"}}
	td.SetCompleted(true, now)
	out := Todo(&td)
	assert.True(t, out.IsCompleted)
	require.NotNil(t, out.CompletedAt)
	assert.Equal(t, "C-1", out.CaseReference)
}
