// Package apperr defines the error kinds shared by the household services.
//
// Sentinels are compared with errors.Is; the structured kinds
// (ValidationError, CrossHouseholdError) are extracted with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotMember         = errors.New("not a member of this household")
	ErrConflict          = errors.New("conflict")
	ErrTimeout           = errors.New("backing store timeout")
	ErrTransient         = errors.New("backing store unavailable")
)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// InvalidTransition wraps ErrInvalidTransition describing the attempted move.
func InvalidTransition(entity string, id int64, from, to string) error {
	return fmt.Errorf("%s %d: %s -> %s: %w", entity, id, from, to, ErrInvalidTransition)
}

// FieldError is one violated field of a request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Field builds a FieldError suitable for Collect.
func Field(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// ValidationError lists every violated field, in the order they were checked.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Collect folds the errors accumulated with multierr.Append into a single
// *ValidationError, flattening nested ValidationErrors. It returns nil when
// err is nil.
func Collect(err error) error {
	if err == nil {
		return nil
	}
	v := &ValidationError{}
	for _, e := range multierr.Errors(err) {
		var nested *ValidationError
		if errors.As(e, &nested) {
			v.Fields = append(v.Fields, nested.Fields...)
			continue
		}
		var fe *FieldError
		if errors.As(e, &fe) {
			v.Fields = append(v.Fields, *fe)
			continue
		}
		v.Fields = append(v.Fields, FieldError{Field: "_", Message: e.Error()})
	}
	return v
}

// Invalid is a shorthand for a single-field ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// CrossHouseholdError reports assignees that are not members of the
// household owning the chore.
type CrossHouseholdError struct {
	HouseholdID int64   `json:"household_id"`
	PersonIDs   []int64 `json:"person_ids"`
}

func (e *CrossHouseholdError) Error() string {
	ids := make([]string, 0, len(e.PersonIDs))
	for _, id := range e.PersonIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("people [%s] are not members of household %d", strings.Join(ids, ", "), e.HouseholdID)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsCrossHousehold reports whether err carries a *CrossHouseholdError.
func IsCrossHousehold(err error) bool {
	var c *CrossHouseholdError
	return errors.As(err, &c)
}
