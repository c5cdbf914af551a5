package apperr

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestCollectKeepsEveryField(t *testing.T) {
	var errs error
	errs = multierr.Append(errs, Field("name", "is required"))
	errs = multierr.Append(errs, Field("due_date", "is required"))
	errs = multierr.Append(errs, Field("assignees", "assign at least one person"))

	err := Collect(errs)
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(v.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(v.Fields))
	}
	want := []string{"name", "due_date", "assignees"}
	for i, f := range want {
		if v.Fields[i].Field != f {
			t.Errorf("fields[%d] = %q, want %q", i, v.Fields[i].Field, f)
		}
	}
	if !v.Has("due_date") {
		t.Error("expected Has(due_date)")
	}
}

func TestCollectFlattensNested(t *testing.T) {
	var errs error
	errs = multierr.Append(errs, Field("name", "is required"))
	errs = multierr.Append(errs, Invalid("repeat_mask", "out of range"))

	var v *ValidationError
	if !errors.As(Collect(errs), &v) {
		t.Fatal("expected *ValidationError")
	}
	if len(v.Fields) != 2 || !v.Has("repeat_mask") {
		t.Errorf("fields = %+v", v.Fields)
	}
}

func TestCollectNil(t *testing.T) {
	if err := Collect(nil); err != nil {
		t.Errorf("Collect(nil) = %v, want nil", err)
	}
}

func TestNotFoundWraps(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("chore", 7))
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is ErrNotFound")
	}
	if got := NotFound("chore", 7).Error(); got != "chore 7: not found" {
		t.Errorf("message = %q", got)
	}
}

func TestCrossHouseholdMessage(t *testing.T) {
	err := fmt.Errorf("assign: %w", &CrossHouseholdError{HouseholdID: 3, PersonIDs: []int64{4, 9}})
	if !IsCrossHousehold(err) {
		t.Fatal("expected cross household")
	}
	if IsValidation(err) {
		t.Error("cross household must not be a validation error")
	}
	var c *CrossHouseholdError
	errors.As(err, &c)
	if c.Error() != "people [4, 9] are not members of household 3" {
		t.Errorf("message = %q", c.Error())
	}
}
