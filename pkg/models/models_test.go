package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseStatusValid(t *testing.T) {
	for _, s := range CaseStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, CaseStatus("ARCHIVED").Valid())
	assert.False(t, CaseStatus("open").Valid())
}

func TestAmountOutstanding(t *testing.T) {
	c := Case{AmountOwed: MustMoney("500.00"), AmountPaid: MustMoney("200.00")}
	assert.Equal(t, "300.00", c.AmountOutstanding().String())

	// overpaid cases go negative
	c.AmountPaid = MustMoney("650.50")
	assert.Equal(t, "-150.50", c.AmountOutstanding().String())
}

func TestTodoToggle(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var td Todo

	assert.True(t, td.Toggle(now))
	require.NotNil(t, td.CompletedAt)
	assert.Equal(t, now, *td.CompletedAt)

	assert.False(t, td.Toggle(now.Add(time.Hour)))
	assert.Nil(t, td.CompletedAt)
}

func TestTodoSetCompleted(t *testing.T) {
	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var td Todo

	td.SetCompleted(true, first)
	require.NotNil(t, td.CompletedAt)

	// already complete: the first timestamp is kept
	td.SetCompleted(true, first.Add(time.Hour))
	assert.Equal(t, first, *td.CompletedAt)

	td.SetCompleted(false, first)
	assert.False(t, td.IsCompleted)
	assert.Nil(t, td.CompletedAt)
}

func TestNullable(t *testing.T) {
	var body struct {
		Date Nullable[string] `json:"date"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))
	assert.False(t, body.Date.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &body))
	assert.True(t, body.Date.Set)
	assert.False(t, body.Date.Valid)

	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-01-31"}`), &body))
	assert.True(t, body.Date.Valid)
	assert.Equal(t, "2025-01-31", body.Date.Value)
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", *FormatDate(d))

	_, err = ParseDate("31/01/2025")
	assert.Error(t, err)
	assert.Nil(t, FormatDate(nil))
}
