package scheduling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestEngine(clock Clock) (*Engine, *memStore) {
	store := newMemStore()
	return NewEngine(store, clock, zap.NewNop()), store
}

func mustKey(t *testing.T, date, label string) SlotKey {
	t.Helper()
	key, err := NewSlotKey(date, label)
	if err != nil {
		t.Fatalf("NewSlotKey(%q, %q): %v", date, label, err)
	}
	return key
}

func requestAppointment(t *testing.T, e *Engine, studentID int, date, label string) *Appointment {
	t.Helper()
	appt, err := e.RequestAppointment(context.Background(), AppointmentRequest{
		StudentID:      studentID,
		StudentName:    "Student Name",
		ProgramSection: "BSIT 3-A",
		Reason:         "academic counseling",
		Date:           date,
		TimeLabel:      label,
	})
	if err != nil {
		t.Fatalf("RequestAppointment: %v", err)
	}
	return appt
}

func TestCreateSlotValidation(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")

	cases := []struct {
		name    string
		date    string
		label   string
		wantErr error
	}{
		{name: "future date", date: "2025-06-10", label: "9:00 AM", wantErr: nil},
		{name: "today future time", date: "2025-06-09", label: "11:00 AM", wantErr: nil},
		{name: "past date", date: "2025-06-08", label: "9:00 AM", wantErr: ErrInvalidInput},
		{name: "today past time", date: "2025-06-09", label: "9:00 AM", wantErr: ErrInvalidInput},
		{name: "today exact now", date: "2025-06-09", label: "10:00 AM", wantErr: ErrInvalidInput},
		{name: "bad date format", date: "06/10/2025", label: "9:00 AM", wantErr: ErrInvalidInput},
		{name: "bad time label", date: "2025-06-10", label: "21:00", wantErr: ErrInvalidInput},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, _ := newTestEngine(clock)
			slot, err := e.CreateSlot(context.Background(), c.date, c.label, 3)
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if !slot.Active || slot.CurrentCount != 0 {
					t.Fatalf("new slot should be active with zero count, got %+v", slot)
				}
				return
			}
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("expected %v, got %v", c.wantErr, err)
			}
		})
	}
}

func TestCreateSlotDuplicate(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateSlotDefaultCapacity(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)

	slot, err := e.CreateSlot(context.Background(), "2025-06-10", "9:00 AM", 0)
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	if slot.MaxCapacity != DefaultMaxCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultMaxCapacity, slot.MaxCapacity)
	}
}

func TestCreateSlotsBulkPartialSuccess(t *testing.T) {
	clock := newFakeClock("2025-06-10 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "2:00 PM", 3); err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	created, skipped, err := e.CreateSlotsBulk(ctx,
		"2025-06-10", []string{"9:00 AM", "2:00 PM", "3:00 PM", "4:00 PM"}, 3)
	if err != nil {
		t.Fatalf("CreateSlotsBulk: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}
	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %d", len(skipped))
	}
	reasons := map[string]string{}
	for _, s := range skipped {
		reasons[s.TimeLabel] = s.Reason
	}
	if reasons["9:00 AM"] != SkipReasonPassed {
		t.Fatalf("9:00 AM should be skipped as passed, got %q", reasons["9:00 AM"])
	}
	if reasons["2:00 PM"] != SkipReasonExists {
		t.Fatalf("2:00 PM should be skipped as existing, got %q", reasons["2:00 PM"])
	}
}

func TestDeleteSlotGuard(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	free, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	booked, err := e.CreateSlot(ctx, "2025-06-10", "10:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	requestAppointment(t, e, 7, booked.Date, booked.TimeLabel)

	if err := e.DeleteSlot(ctx, free.ID); err != nil {
		t.Fatalf("deleting unreferenced slot: %v", err)
	}
	err = e.DeleteSlot(ctx, booked.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 appointment") {
		t.Fatalf("conflict should report the referencing count, got %q", err.Error())
	}
}

func TestPendingDoesNotBlockPending(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 1); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	a1 := requestAppointment(t, e, 1, "2025-06-10", "9:00 AM")
	a2 := requestAppointment(t, e, 2, "2025-06-10", "9:00 AM")
	if a1.Status != StatusPending || a2.Status != StatusPending {
		t.Fatalf("both appointments should be pending")
	}

	// The cached count tracks pending load for the staff view.
	slot, err := e.store.GetSlotByKey(ctx, mustKey(t, "2025-06-10", "9:00 AM"))
	if err != nil || slot == nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot.CurrentCount != 2 {
		t.Fatalf("expected cached count 2, got %d", slot.CurrentCount)
	}
}

func TestRequestAppointmentUnavailable(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	// No slot at all.
	_, err := e.RequestAppointment(ctx, AppointmentRequest{
		StudentID: 1, StudentName: "A", Reason: "x",
		Date: "2025-06-10", TimeLabel: "9:00 AM",
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	// Inactive slot.
	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 1)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if _, err := e.ToggleSlot(ctx, slot.ID); err != nil {
		t.Fatalf("toggle slot: %v", err)
	}
	_, err = e.RequestAppointment(ctx, AppointmentRequest{
		StudentID: 1, StudentName: "A", Reason: "x",
		Date: "2025-06-10", TimeLabel: "9:00 AM",
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for inactive slot, got %v", err)
	}

	// Full slot: one approval on capacity 1 blocks new submissions.
	slot2, err := e.CreateSlot(ctx, "2025-06-10", "10:00 AM", 1)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 2, slot2.Date, slot2.TimeLabel)
	if _, err := e.Approve(ctx, appt.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = e.RequestAppointment(ctx, AppointmentRequest{
		StudentID: 3, StudentName: "B", Reason: "x",
		Date: slot2.Date, TimeLabel: slot2.TimeLabel,
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for full slot, got %v", err)
	}
}

// Capacity-1 slot, two pending appointments, one approval.
// The approval fills the slot, the other appointment is auto-rejected with a
// reason naming the trigger, and a later approve attempt on it fails.
func TestApproveCascadeRejectsRemainingPending(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 1); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	// An unrelated slot that must stay untouched by the cascade.
	if _, err := e.CreateSlot(ctx, "2025-06-10", "10:00 AM", 1); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	a1 := requestAppointment(t, e, 1, "2025-06-10", "9:00 AM")
	a2 := requestAppointment(t, e, 2, "2025-06-10", "9:00 AM")
	other := requestAppointment(t, e, 3, "2025-06-10", "10:00 AM")

	approved, err := e.Approve(ctx, a1.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	got, err := e.GetAppointment(ctx, a2.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("expected auto-rejected, got %s", got.Status)
	}
	if got.RejectReason == nil || *got.RejectReason == "" {
		t.Fatalf("auto-rejection must carry a system reason")
	}
	if !strings.Contains(*got.RejectReason, "2025-06-10 9:00 AM") {
		t.Fatalf("reason should reference the filled slot, got %q", *got.RejectReason)
	}

	untouched, err := e.GetAppointment(ctx, other.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if untouched.Status != StatusPending {
		t.Fatalf("cascade must not leak to other slots, got %s", untouched.Status)
	}

	_, err = e.Approve(ctx, a2.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approving a rejected appointment should fail with ErrInvalidTransition, got %v", err)
	}
}

func TestApproveFullSlot(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 2); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	a1 := requestAppointment(t, e, 1, "2025-06-10", "9:00 AM")
	a2 := requestAppointment(t, e, 2, "2025-06-10", "9:00 AM")
	a3 := requestAppointment(t, e, 3, "2025-06-10", "9:00 AM")

	if _, err := e.Approve(ctx, a1.ID); err != nil {
		t.Fatalf("approve a1: %v", err)
	}
	if _, err := e.Approve(ctx, a2.ID); err != nil {
		t.Fatalf("approve a2: %v", err)
	}
	// a3 was cascade-rejected by a2's approval filling the slot.
	got, err := e.GetAppointment(ctx, a3.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("expected a3 auto-rejected, got %s", got.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	if _, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, "2025-06-10", "9:00 AM")

	for _, reason := range []string{"", "   ", "\t\n"} {
		if _, err := e.Reject(ctx, appt.ID, reason); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("blank reason %q should fail with ErrInvalidInput, got %v", reason, err)
		}
	}

	rejected, err := e.Reject(ctx, appt.ID, "  no counselor available  ")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "no counselor available" {
		t.Fatalf("reason should be trimmed, got %v", rejected.RejectReason)
	}

	// Terminal: rejecting again is a state violation.
	if _, err := e.Reject(ctx, appt.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestExpiryDeactivatesAndCompletes(t *testing.T) {
	clock := newFakeClock("2025-06-10 9:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "11:00 AM", 1)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)
	if _, err := e.Approve(ctx, appt.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Before 11:00 AM the slot is still listed.
	slots, err := e.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 active slot, got %d", len(slots))
	}

	clock.Set("2025-06-10 11:01 AM")
	slots, err = e.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("lapsed slot should be gone from the listing, got %d", len(slots))
	}

	got, err := e.store.GetSlot(ctx, slot.ID)
	if err != nil || got == nil {
		t.Fatalf("get slot: %v", err)
	}
	if got.Active {
		t.Fatalf("lapsed slot should be inactive")
	}
	done, err := e.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("approved appointment on a retired slot should be completed, got %s", done.Status)
	}

	// Re-running expiry on the already-inactive slot is a no-op.
	if err := e.ExpireDue(ctx); err != nil {
		t.Fatalf("second expiry pass: %v", err)
	}
}

// A slot whose time lapses with no intervening listing must still be retired
// before an approval is admitted onto it.
func TestApproveLapsedSlot(t *testing.T) {
	clock := newFakeClock("2025-06-10 9:00 AM")
	e, store := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "11:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)

	clock.Set("2025-06-10 11:30 AM")
	_, err = e.Approve(ctx, appt.ID)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("approving on a lapsed slot should fail with ErrSlotUnavailable, got %v", err)
	}

	got, err := store.GetSlot(ctx, slot.ID)
	if err != nil || got == nil {
		t.Fatalf("get slot: %v", err)
	}
	if got.Active {
		t.Fatalf("lapsed slot should have been retired by the approval attempt")
	}
	still, err := e.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if still.Status != StatusPending {
		t.Fatalf("pending appointment survives retirement unchanged, got %s", still.Status)
	}
}

func TestCreateSlotPastErrorsCarryTimePassed(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	_, err := e.CreateSlot(ctx, "2025-06-08", "9:00 AM", 3)
	if !errors.Is(err, ErrTimePassed) {
		t.Fatalf("past date should match ErrTimePassed, got %v", err)
	}
	_, err = e.CreateSlot(ctx, "2025-06-09", "9:00 AM", 3)
	if !errors.Is(err, ErrTimePassed) {
		t.Fatalf("elapsed time should match ErrTimePassed, got %v", err)
	}
	// A malformed label is invalid input but not a lapse.
	_, err = e.CreateSlot(ctx, "2025-06-10", "25:00", 3)
	if !errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrTimePassed) {
		t.Fatalf("malformed label should be plain invalid input, got %v", err)
	}
}

func TestApprovedForSlot(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	approved := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)
	requestAppointment(t, e, 2, slot.Date, slot.TimeLabel)
	if _, err := e.Approve(ctx, approved.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, err := e.ApprovedForSlot(ctx, slot.Key())
	if err != nil {
		t.Fatalf("approved for slot: %v", err)
	}
	if len(got) != 1 || got[0].ID != approved.ID {
		t.Fatalf("expected only the approved appointment, got %+v", got)
	}
}

func TestTodayFollowsOfficeClock(t *testing.T) {
	clock := newFakeClock("2025-06-09 11:45 PM")
	e, _ := newTestEngine(clock)

	if got := e.Today(); got != "2025-06-09" {
		t.Fatalf("want 2025-06-09, got %s", got)
	}
	clock.Set("2025-06-10 12:05 AM")
	if got := e.Today(); got != "2025-06-10" {
		t.Fatalf("want 2025-06-10 after midnight, got %s", got)
	}
}

func TestToggleRetiresApproved(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 2)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	approvedAppt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)
	pendingAppt := requestAppointment(t, e, 2, slot.Date, slot.TimeLabel)
	if _, err := e.Approve(ctx, approvedAppt.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	toggled, err := e.ToggleSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Active {
		t.Fatalf("toggle should deactivate")
	}

	done, _ := e.GetAppointment(ctx, approvedAppt.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("approved appointment should be completed on retirement, got %s", done.Status)
	}
	still, _ := e.GetAppointment(ctx, pendingAppt.ID)
	if still.Status != StatusPending {
		t.Fatalf("retirement only touches approved appointments, got %s", still.Status)
	}

	// Toggling back on re-activates without touching appointments.
	reactivated, err := e.ToggleSlot(ctx, slot.ID)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if !reactivated.Active {
		t.Fatalf("second toggle should re-activate")
	}
}

func TestCompleteWithPass(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, store := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)

	// Only approved appointments can be completed.
	if _, err := e.CompleteWithPass(ctx, appt.ID, 99); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending, got %v", err)
	}

	if _, err := e.Approve(ctx, appt.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	pass, err := e.CompleteWithPass(ctx, appt.ID, 99)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if pass.Serial == "" || pass.AppointmentID != appt.ID || pass.IssuedBy != 99 {
		t.Fatalf("pass fields wrong: %+v", pass)
	}

	done, _ := e.GetAppointment(ctx, appt.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	got, _ := store.GetSlot(ctx, slot.ID)
	if got.Active {
		t.Fatalf("slot should be deactivated by pass issuance")
	}
}

func TestResyncIdempotent(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, store := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)
	requestAppointment(t, e, 2, slot.Date, slot.TimeLabel)

	// Knock the cache out of sync behind the engine's back.
	if err := store.SetSlotCount(ctx, slot.ID, 9, clock.Now()); err != nil {
		t.Fatalf("set slot count: %v", err)
	}

	changed, err := e.ResyncAll(ctx)
	if err != nil {
		t.Fatalf("first resync: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 changed slot, got %d", changed)
	}
	count, err := e.Resync(ctx, slot.Key())
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected live count 2, got %d", count)
	}

	changed, err = e.ResyncAll(ctx)
	if err != nil {
		t.Fatalf("second resync: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second resync should change nothing, got %d", changed)
	}
}

func TestListWithLiveCountsIgnoresCache(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, store := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)
	if _, err := e.Approve(ctx, appt.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// Stale cache must not leak into the admin view.
	if err := store.SetSlotCount(ctx, slot.ID, 42, clock.Now()); err != nil {
		t.Fatalf("set slot count: %v", err)
	}

	rows, err := e.ListWithLiveCounts(ctx)
	if err != nil {
		t.Fatalf("list with live counts: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].LiveCount != 1 || rows[0].ApprovedCount != 1 {
		t.Fatalf("expected live=1 approved=1, got live=%d approved=%d", rows[0].LiveCount, rows[0].ApprovedCount)
	}
}

func TestListActiveOrdersChronologically(t *testing.T) {
	clock := newFakeClock("2025-06-09 8:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	// "1:00 PM" sorts before "9:00 AM" lexically; chronological order must win.
	for _, label := range []string{"1:00 PM", "9:00 AM", "10:30 AM"} {
		if _, err := e.CreateSlot(ctx, "2025-06-10", label, 3); err != nil {
			t.Fatalf("create slot %s: %v", label, err)
		}
	}
	if _, err := e.CreateSlot(ctx, "2025-06-09", "4:00 PM", 3); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	slots, err := e.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	var got []string
	for _, s := range slots {
		got = append(got, s.Date+" "+s.TimeLabel)
	}
	want := []string{"2025-06-09 4:00 PM", "2025-06-10 9:00 AM", "2025-06-10 10:30 AM", "2025-06-10 1:00 PM"}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: want %q, got %v", i, want[i], got)
		}
	}
}

// The capacity contract under concurrency: many goroutines race to approve
// different pending appointments on a capacity-1 slot; exactly one approval
// may win.
func TestConcurrentApprovalsNeverOvercommit(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, store := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 1)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	const contenders = 16
	ids := make([]int, contenders)
	for i := 0; i < contenders; i++ {
		ids[i] = requestAppointment(t, e, 100+i, slot.Date, slot.TimeLabel).ID
	}

	var wg sync.WaitGroup
	successes := make(chan int, contenders)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := e.Approve(ctx, id); err == nil {
				successes <- id
			}
		}(id)
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	if won != 1 {
		t.Fatalf("exactly one approval must win on a capacity-1 slot, got %d", won)
	}

	approved, err := store.CountAppointments(ctx, slot.Key(), StatusApproved)
	if err != nil {
		t.Fatalf("count approved: %v", err)
	}
	if approved != 1 {
		t.Fatalf("approved count must equal capacity, got %d", approved)
	}
	rejectedCount, err := store.CountAppointments(ctx, slot.Key(), StatusRejected)
	if err != nil {
		t.Fatalf("count rejected: %v", err)
	}
	if rejectedCount != contenders-1 {
		t.Fatalf("losers should be cascade-rejected, got %d of %d", rejectedCount, contenders-1)
	}
}

func TestApproveMissingOrRetiredSlot(t *testing.T) {
	clock := newFakeClock("2025-06-09 10:00 AM")
	e, _ := newTestEngine(clock)
	ctx := context.Background()

	slot, err := e.CreateSlot(ctx, "2025-06-10", "9:00 AM", 3)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	appt := requestAppointment(t, e, 1, slot.Date, slot.TimeLabel)

	if _, err := e.ToggleSlot(ctx, slot.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_, err = e.Approve(ctx, appt.ID)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("approving on an inactive slot should fail with ErrSlotUnavailable, got %v", err)
	}

	_, err = e.Approve(ctx, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
