// pkg/models/api.go
package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ValidationErrorResponse is the 400 body for field validation failures.
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// ErrorResponse is the body for every other error (401/404/500 ...).
type ErrorResponse struct {
	Error  bool   `json:"error" example:"true"`
	Code   string `json:"code,omitempty" example:"NOT_FOUND"`
	Detail string `json:"detail" example:"Not Found"`
}

// Nullable is a request field that distinguishes "absent" from "null".
// Set is true whenever the key was present in the body; Valid is false for null.
type Nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if strings.TrimSpace(string(b)) == "null" {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a date column value.
func ParseDate(s string) (*datatypes.Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	d := datatypes.Date(t)
	return &d, nil
}

// FormatDate renders a date column value, or nil when unset.
func FormatDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	s := time.Time(*d).Format(DateLayout)
	return &s
}
