package assignment

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/database"
	"github.com/dukerupert/roomies/internal/event"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

type fixture struct {
	db     *sql.DB
	ledger *Ledger
	house  *model.Household
	alice  *model.Person
	bob    *model.Person
	eve    *model.Person // member of another household
	chore  *model.Chore
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := household.NewDirectory(db, store.DefaultCallPolicy, event.Discard, logger)

	f := &fixture{db: db, ledger: NewLedger(db, dir, store.DefaultCallPolicy, event.Discard, logger)}
	if f.alice, err = dir.RegisterPerson(ctx, "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.bob, err = dir.RegisterPerson(ctx, "Bob"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.eve, err = dir.RegisterPerson(ctx, "Eve"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.house, err = dir.CreateHousehold(ctx, f.alice.ID, "Flat"); err != nil {
		t.Fatalf("create household: %v", err)
	}
	if _, err = dir.JoinByInviteCode(ctx, f.bob.ID, f.house.InviteCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err = dir.CreateHousehold(ctx, f.eve.ID, "Elsewhere"); err != nil {
		t.Fatalf("create other household: %v", err)
	}

	f.chore, err = store.NewChoreStore(db).Create(ctx, store.ChoreParams{
		HouseholdID: f.house.ID,
		Name:        "Vacuum",
		DueDate:     time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return f
}

func TestNormalize(t *testing.T) {
	got := Normalize([]int64{3, 1, 3, 0, -2, 1, 2})
	want := []int64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Normalize[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAssignEmpty(t *testing.T) {
	f := setupFixture(t)
	err := f.ledger.Assign(context.Background(), f.alice.ID, f.chore.ID, nil)

	var v *apperr.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !v.Has("assignees") || v.Fields[0].Message != EmptyAssigneesMessage {
		t.Errorf("fields = %+v", v.Fields)
	}
}

func TestAssignIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := f.ledger.Assign(ctx, f.alice.ID, f.chore.ID, []int64{f.bob.ID, f.alice.ID, f.bob.ID}); err != nil {
			t.Fatalf("assign #%d: %v", i+1, err)
		}
	}

	people, err := f.ledger.AssignmentsFor(ctx, f.bob.ID, f.chore.ID)
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("len = %d, want 2", len(people))
	}
	if people[0].DisplayName != "Alice" || people[1].DisplayName != "Bob" {
		t.Errorf("assignees = %q, %q", people[0].DisplayName, people[1].DisplayName)
	}
}

func TestAssignCrossHousehold(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	err := f.ledger.Assign(ctx, f.alice.ID, f.chore.ID, []int64{f.bob.ID, f.eve.ID})
	var ch *apperr.CrossHouseholdError
	if !errors.As(err, &ch) {
		t.Fatalf("err = %v, want CrossHouseholdError", err)
	}
	if ch.HouseholdID != f.house.ID || len(ch.PersonIDs) != 1 || ch.PersonIDs[0] != f.eve.ID {
		t.Errorf("cross household = %+v", ch)
	}

	// Nothing was written, not even the valid assignee.
	n, err := store.NewAssignmentStore(f.db).CountForChore(ctx, f.chore.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("assignments = %d, want 0", n)
	}
}

func TestAssignRequiresActorMembership(t *testing.T) {
	f := setupFixture(t)
	err := f.ledger.Assign(context.Background(), f.eve.ID, f.chore.ID, []int64{f.alice.ID})
	if !errors.Is(err, apperr.ErrNotMember) {
		t.Errorf("err = %v, want ErrNotMember", err)
	}
}

func TestAssignUnknownChore(t *testing.T) {
	f := setupFixture(t)
	err := f.ledger.Assign(context.Background(), f.alice.ID, 404, []int64{f.alice.ID})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChoresFor(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	if err := f.ledger.Assign(ctx, f.alice.ID, f.chore.ID, []int64{f.alice.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	mine, err := f.ledger.ChoresFor(ctx, f.bob.ID, f.alice.ID, model.ChoreOngoing)
	if err != nil {
		t.Fatalf("chores for alice: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != f.chore.ID {
		t.Errorf("alice chores = %+v", mine)
	}

	bobs, err := f.ledger.ChoresFor(ctx, f.bob.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("chores for bob: %v", err)
	}
	if len(bobs) != 0 {
		t.Errorf("bob chores = %d, want 0", len(bobs))
	}

	if _, err := f.ledger.ChoresFor(ctx, f.eve.ID, f.alice.ID); !errors.Is(err, apperr.ErrNotMember) {
		t.Errorf("outsider err = %v, want ErrNotMember", err)
	}
}

func TestAssigneesByChore(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	if err := f.ledger.Assign(ctx, f.alice.ID, f.chore.ID, []int64{f.bob.ID, f.alice.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := f.ledger.AssigneesByChore(ctx, []int64{f.chore.ID, 999})
	if err != nil {
		t.Fatalf("assignees by chore: %v", err)
	}
	ids := got[f.chore.ID]
	if len(ids) != 2 || ids[0] != f.alice.ID || ids[1] != f.bob.ID {
		t.Errorf("assignees = %v, want [%d %d]", ids, f.alice.ID, f.bob.ID)
	}
	if _, ok := got[999]; ok {
		t.Error("unknown chore should be absent")
	}
}
