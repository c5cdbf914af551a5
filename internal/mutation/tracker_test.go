package mutation

import (
	"context"
	"errors"
	"testing"
)

func TestApplyConfirm(t *testing.T) {
	tr := NewTracker[string](10)

	m, started := tr.Apply("", "available", "busy")
	if !started {
		t.Fatal("expected a new mutation")
	}
	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if m.State != Pending || m.Value() != "busy" {
		t.Errorf("pending = %s/%q, want pending/busy", m.State, m.Value())
	}

	m, err := tr.Confirm(m.ID, "busy")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if m.State != Confirmed || m.Value() != "busy" {
		t.Errorf("confirmed = %s/%q", m.State, m.Value())
	}
	if m.SettledAt.IsZero() {
		t.Error("settled_at should be set")
	}

	if _, err := tr.Fail(m.ID, errors.New("late")); !errors.Is(err, ErrSettled) {
		t.Errorf("fail after confirm err = %v, want ErrSettled", err)
	}
}

func TestFailRollsBack(t *testing.T) {
	tr := NewTracker[string](10)
	m, _ := tr.Apply("m1", "ongoing", "completed")

	cause := errors.New("transition refused")
	m, err := tr.Fail("m1", cause)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if m.State != Failed || m.Value() != "ongoing" || !errors.Is(m.Err, cause) {
		t.Errorf("failed = %s/%q/%v", m.State, m.Value(), m.Err)
	}
}

func TestUnknownID(t *testing.T) {
	tr := NewTracker[int](10)
	if _, err := tr.Confirm("nope", 1); !errors.Is(err, ErrUnknown) {
		t.Errorf("err = %v, want ErrUnknown", err)
	}
}

func TestReconcile(t *testing.T) {
	tr := NewTracker[int](10)
	ctx := context.Background()
	calls := 0
	call := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	m, err := tr.Reconcile(ctx, "req-1", 0, 1, call)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if m.State != Confirmed || m.Result != 42 {
		t.Errorf("m = %+v", m)
	}

	// Replay returns the stored result.
	m, err = tr.Reconcile(ctx, "req-1", 0, 1, call)
	if err != nil || m.Result != 42 {
		t.Errorf("replay = %+v, %v", m, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReconcileFailureThenRetry(t *testing.T) {
	tr := NewTracker[int](10)
	ctx := context.Background()
	boom := errors.New("boom")

	m, err := tr.Reconcile(ctx, "req", 5, 6, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if m.State != Failed || m.Value() != 5 {
		t.Errorf("failed = %+v", m)
	}

	m, err = tr.Reconcile(ctx, "req", 5, 6, func(context.Context) (int, error) { return 6, nil })
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if m.State != Confirmed || m.Value() != 6 {
		t.Errorf("retried = %+v", m)
	}
}

func TestReconcileInFlight(t *testing.T) {
	tr := NewTracker[int](10)
	tr.Apply("busy", 0, 1)

	_, err := tr.Reconcile(context.Background(), "busy", 0, 1, func(context.Context) (int, error) {
		t.Fatal("call should not run")
		return 0, nil
	})
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("err = %v, want ErrInFlight", err)
	}
	if got := len(tr.Pending()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestEvictsOldestSettled(t *testing.T) {
	tr := NewTracker[int](2)
	for _, id := range []string{"a", "b", "c"} {
		tr.Apply(id, 0, 1)
		if _, err := tr.Confirm(id, 1); err != nil {
			t.Fatalf("confirm %s: %v", id, err)
		}
	}
	if _, ok := tr.Get("a"); ok {
		t.Error("oldest settled mutation should be evicted")
	}
	for _, id := range []string{"b", "c"} {
		if _, ok := tr.Get(id); !ok {
			t.Errorf("%s should still be tracked", id)
		}
	}
}

func TestStateText(t *testing.T) {
	b, err := Failed.MarshalText()
	if err != nil || string(b) != "failed" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
}
