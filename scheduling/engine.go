package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the slot booking lifecycle: slot management, capacity
// admission, appointment approval with its cascades, lazy expiry and count
// reconciliation. Every capacity decision recounts approved appointments from
// live rows while holding the slot's row lock, so two concurrent approvals on
// a nearly-full slot cannot both pass the check.
type Engine struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

func NewEngine(store Store, clock Clock, logger *zap.Logger) *Engine {
	return &Engine{store: store, clock: clock, logger: logger}
}

// SkipReasonExists and SkipReasonPassed are the per-item reasons reported by
// CreateSlotsBulk.
const (
	SkipReasonExists = "already exists"
	SkipReasonPassed = "time has passed"
)

// AppointmentRequest carries a student's booking submission.
type AppointmentRequest struct {
	StudentID      int
	StudentName    string
	ProgramSection string
	Reason         string
	Date           string
	TimeLabel      string
}

// CreateSlot validates and persists one bookable slot. The slot must not
// duplicate an existing (date, time) pair and must not already be in the
// past relative to the office clock.
func (e *Engine) CreateSlot(ctx context.Context, date, timeLabel string, maxCapacity int) (*Slot, error) {
	key, err := NewSlotKey(date, timeLabel)
	if err != nil {
		return nil, err
	}
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}

	now := e.clock.Now()
	if err := e.checkNotPast(key, now); err != nil {
		return nil, err
	}

	exists, err := e.store.SlotExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check slot exists: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: a slot for %s already exists", ErrConflict, key)
	}

	slot := &Slot{
		Date:        key.Date,
		TimeLabel:   key.TimeLabel,
		MaxCapacity: maxCapacity,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	e.logger.Info("slot created",
		zap.Int("slot_id", slot.ID),
		zap.String("date", slot.Date),
		zap.String("time", slot.TimeLabel),
		zap.Int("max_capacity", slot.MaxCapacity),
	)
	return slot, nil
}

// CreateSlotsBulk creates one slot per time label for a single date. Each
// label is validated independently; invalid or duplicate entries are skipped
// with a reason instead of failing the whole batch.
func (e *Engine) CreateSlotsBulk(ctx context.Context, date string, timeLabels []string, maxCapacity int) ([]Slot, []SkippedSlot, error) {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(date)); err != nil {
		return nil, nil, fmt.Errorf("%w: date must be yyyy-mm-dd, got %q", ErrInvalidInput, date)
	}
	if len(timeLabels) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one time is required", ErrInvalidInput)
	}

	var created []Slot
	var skipped []SkippedSlot
	for _, label := range timeLabels {
		slot, err := e.CreateSlot(ctx, date, label, maxCapacity)
		switch {
		case err == nil:
			created = append(created, *slot)
		case isConflict(err):
			skipped = append(skipped, SkippedSlot{TimeLabel: label, Reason: SkipReasonExists})
		case isPassed(err):
			skipped = append(skipped, SkippedSlot{TimeLabel: label, Reason: SkipReasonPassed})
		case isInvalid(err):
			skipped = append(skipped, SkippedSlot{TimeLabel: label, Reason: err.Error()})
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}

// UpdateSlot overwrites a slot's mutable fields. Past dates are deliberately
// not re-validated; staff use this to correct historical entries.
func (e *Engine) UpdateSlot(ctx context.Context, id int, date, timeLabel string, maxCapacity int) (*Slot, error) {
	key, err := NewSlotKey(date, timeLabel)
	if err != nil {
		return nil, err
	}
	if maxCapacity <= 0 {
		return nil, fmt.Errorf("%w: max capacity must be positive", ErrInvalidInput)
	}

	slot, err := e.store.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}

	if key != slot.Key() {
		other, err := e.store.GetSlotByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check slot key: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, fmt.Errorf("%w: a slot for %s already exists", ErrConflict, key)
		}
	}

	slot.Date = key.Date
	slot.TimeLabel = key.TimeLabel
	slot.MaxCapacity = maxCapacity
	slot.UpdatedAt = e.clock.Now()
	if err := e.store.UpdateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}
	return slot, nil
}

// ToggleSlot flips a slot's active flag. Deactivation retires the slot:
// every approved appointment on its key is completed within the same
// transaction.
func (e *Engine) ToggleSlot(ctx context.Context, id int) (*Slot, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := tx.LockSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}

	now := e.clock.Now()
	slot.Active = !slot.Active
	if err := tx.SetSlotActive(ctx, slot.ID, slot.Active, now); err != nil {
		return nil, fmt.Errorf("set slot active: %w", err)
	}
	if !slot.Active {
		if err := e.retireLocked(ctx, tx, slot, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("slot toggled",
		zap.Int("slot_id", slot.ID),
		zap.Bool("active", slot.Active),
	)
	return slot, nil
}

// DeleteSlot removes a slot that no appointment references. Any appointment
// on the slot's (date, time) key blocks deletion.
func (e *Engine) DeleteSlot(ctx context.Context, id int) error {
	slot, err := e.store.GetSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}

	refs, err := e.store.CountAppointments(ctx, slot.Key())
	if err != nil {
		return fmt.Errorf("count appointments: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %d appointment(s) reference slot %s", ErrConflict, refs, slot.Key())
	}
	if err := e.store.DeleteSlot(ctx, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// ListActive returns active slots dated fromDate or later, chronologically
// ordered. Lapsed slots for today are expired first, so the listing is always
// fresh as of the read.
func (e *Engine) ListActive(ctx context.Context, fromDate string) ([]Slot, error) {
	if fromDate == "" {
		fromDate = e.clock.Now().Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, fromDate); err != nil {
		return nil, fmt.Errorf("%w: date must be yyyy-mm-dd, got %q", ErrInvalidInput, fromDate)
	}
	if err := e.ExpireDue(ctx); err != nil {
		return nil, err
	}
	slots, err := e.store.ListActiveSlots(ctx, fromDate)
	if err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	sortSlotsChrono(slots)
	return slots, nil
}

// ListForDate returns every slot (active or not) for one date, expiring
// lapsed ones first.
func (e *Engine) ListForDate(ctx context.Context, date string) ([]Slot, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be yyyy-mm-dd, got %q", ErrInvalidInput, date)
	}
	if err := e.ExpireDue(ctx); err != nil {
		return nil, err
	}
	slots, err := e.store.ListSlotsForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots for date: %w", err)
	}
	sortSlotsChrono(slots)
	return slots, nil
}

// ListWithLiveCounts is the staff view: every slot with its pending+approved
// and approved-only counts recomputed from live appointment rows, never from
// the cache.
func (e *Engine) ListWithLiveCounts(ctx context.Context) ([]SlotWithLiveCounts, error) {
	if err := e.ExpireDue(ctx); err != nil {
		return nil, err
	}
	slots, err := e.store.ListAllSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	sortSlotsChrono(slots)

	out := make([]SlotWithLiveCounts, 0, len(slots))
	for _, slot := range slots {
		live, err := e.store.CountAppointments(ctx, slot.Key(), StatusPending, StatusApproved)
		if err != nil {
			return nil, fmt.Errorf("count live appointments: %w", err)
		}
		approved, err := e.store.CountAppointments(ctx, slot.Key(), StatusApproved)
		if err != nil {
			return nil, fmt.Errorf("count approved appointments: %w", err)
		}
		out = append(out, SlotWithLiveCounts{Slot: slot, LiveCount: live, ApprovedCount: approved})
	}
	return out, nil
}

// ExpireDue deactivates every active slot dated today whose time label has
// already elapsed, and retires it (approved appointments complete). Runs
// synchronously before listings and capacity checks; re-running is a no-op
// for slots that are already inactive. Unparsable time labels never expire
// but are flagged in the log.
func (e *Engine) ExpireDue(ctx context.Context) error {
	now := e.clock.Now()
	today := now.Format(DateLayout)

	slots, err := e.store.ListActiveSlotsOn(ctx, today)
	if err != nil {
		return fmt.Errorf("list today's slots: %w", err)
	}
	for _, slot := range slots {
		at, err := slot.Key().At(now.Location())
		if err != nil {
			e.logger.Warn("slot has unparsable time label, skipping expiry",
				zap.Int("slot_id", slot.ID),
				zap.String("time_label", slot.TimeLabel),
			)
			continue
		}
		if at.After(now) {
			continue
		}
		if err := e.expireSlot(ctx, slot.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) expireSlot(ctx context.Context, id int, now time.Time) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := tx.LockSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}
	// Gone or already deactivated by a concurrent request: nothing to do.
	if slot == nil || !slot.Active {
		return tx.Rollback(ctx)
	}

	if err := tx.SetSlotActive(ctx, slot.ID, false, now); err != nil {
		return fmt.Errorf("set slot active: %w", err)
	}
	if err := e.retireLocked(ctx, tx, slot, now); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("slot expired",
		zap.Int("slot_id", slot.ID),
		zap.String("date", slot.Date),
		zap.String("time", slot.TimeLabel),
	)
	return nil
}

// retireLocked completes every approved appointment on the slot's key and
// refreshes the cached count. The caller must hold the slot's row lock.
func (e *Engine) retireLocked(ctx context.Context, tx Tx, slot *Slot, now time.Time) error {
	approved, err := tx.ListAppointments(ctx, slot.Key(), StatusApproved)
	if err != nil {
		return fmt.Errorf("list approved appointments: %w", err)
	}
	for _, appt := range approved {
		if err := tx.SetAppointmentStatus(ctx, appt.ID, StatusCompleted, nil, now); err != nil {
			return fmt.Errorf("complete appointment %d: %w", appt.ID, err)
		}
	}
	return e.resyncLocked(ctx, tx, slot, now)
}

// RequestAppointment admits a new pending appointment. The target slot must
// exist, be active and have approved headroom; pending appointments never
// block new submissions.
func (e *Engine) RequestAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	key, err := NewSlotKey(req.Date, req.TimeLabel)
	if err != nil {
		return nil, err
	}
	if req.StudentID <= 0 {
		return nil, fmt.Errorf("%w: student is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.StudentName) == "" {
		return nil, fmt.Errorf("%w: student name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	// Lapsed slots must not accept bookings even if no listing has refreshed
	// them yet.
	if err := e.ExpireDue(ctx); err != nil {
		return nil, err
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := tx.LockSlotByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot == nil || !slot.Active {
		return nil, fmt.Errorf("%w: no active slot for %s", ErrSlotUnavailable, key)
	}
	approved, err := tx.CountAppointments(ctx, key, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("count approved appointments: %w", err)
	}
	if approved >= slot.MaxCapacity {
		return nil, fmt.Errorf("%w: slot %s is fully booked", ErrSlotUnavailable, key)
	}

	now := e.clock.Now()
	appt := &Appointment{
		StudentID:      req.StudentID,
		StudentName:    strings.TrimSpace(req.StudentName),
		ProgramSection: strings.TrimSpace(req.ProgramSection),
		Reason:         strings.TrimSpace(req.Reason),
		Date:           key.Date,
		TimeLabel:      key.TimeLabel,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	if err := e.resyncLocked(ctx, tx, slot, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("appointment requested",
		zap.Int("appointment_id", appt.ID),
		zap.Int("student_id", appt.StudentID),
		zap.String("slot", key.String()),
	)
	return appt, nil
}

// Approve transitions a pending appointment to approved, re-checking capacity
// under the slot's row lock. When the approval fills the slot, every other
// still-pending appointment on the same key is auto-rejected in the same
// transaction.
func (e *Engine) Approve(ctx context.Context, appointmentID int) (*Appointment, error) {
	// A lapsed slot must be retired before the capacity check, even when no
	// listing has refreshed it yet; approving onto it would skip the
	// completed/rejected lifecycle.
	if err := e.ExpireDue(ctx); err != nil {
		return nil, err
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}

	slot, err := tx.LockSlotByKey(ctx, appt.Key())
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot == nil || !slot.Active {
		return nil, fmt.Errorf("%w: no active slot for %s", ErrSlotUnavailable, appt.Key())
	}

	// Re-read under the lock: a concurrent approval's cascade may have
	// rejected this appointment while we waited.
	appt, err = tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}
	if appt.Status != StatusPending {
		return nil, fmt.Errorf("%w: appointment %d is %s", ErrInvalidTransition, appointmentID, appt.Status)
	}

	approved, err := tx.CountAppointments(ctx, appt.Key(), StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("count approved appointments: %w", err)
	}
	if approved >= slot.MaxCapacity {
		return nil, fmt.Errorf("%w: slot %s already has %d approved appointment(s)", ErrSlotFull, appt.Key(), approved)
	}

	now := e.clock.Now()
	if err := tx.SetAppointmentStatus(ctx, appt.ID, StatusApproved, nil, now); err != nil {
		return nil, fmt.Errorf("approve appointment: %w", err)
	}
	appt.Status = StatusApproved
	appt.RejectReason = nil
	appt.UpdatedAt = now

	rejected := 0
	if approved+1 >= slot.MaxCapacity {
		reason := fmt.Sprintf("Slot %s reached its capacity after appointment #%d was approved.", appt.Key(), appt.ID)
		pendings, err := tx.ListAppointments(ctx, appt.Key(), StatusPending)
		if err != nil {
			return nil, fmt.Errorf("list pending appointments: %w", err)
		}
		for _, p := range pendings {
			if p.ID == appt.ID {
				continue
			}
			if err := tx.SetAppointmentStatus(ctx, p.ID, StatusRejected, &reason, now); err != nil {
				return nil, fmt.Errorf("auto-reject appointment %d: %w", p.ID, err)
			}
			rejected++
		}
	}
	if err := e.resyncLocked(ctx, tx, slot, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("appointment approved",
		zap.Int("appointment_id", appt.ID),
		zap.String("slot", appt.Key().String()),
		zap.Int("auto_rejected", rejected),
	)
	return appt, nil
}

// Reject transitions a pending appointment to rejected with a mandatory,
// trimmed reason.
func (e *Engine) Reject(ctx context.Context, appointmentID int, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}

	// Serialize with concurrent approvals on the same key. The slot can be
	// missing only if the label strings drifted; that is a data-integrity
	// problem worth surfacing, not a silent non-match.
	slot, err := tx.LockSlotByKey(ctx, appt.Key())
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot != nil {
		appt, err = tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return nil, fmt.Errorf("get appointment: %w", err)
		}
	} else {
		e.logger.Warn("appointment references no slot",
			zap.Int("appointment_id", appointmentID),
			zap.String("slot", appt.Key().String()),
		)
	}
	if appt.Status != StatusPending {
		return nil, fmt.Errorf("%w: appointment %d is %s", ErrInvalidTransition, appointmentID, appt.Status)
	}

	now := e.clock.Now()
	if err := tx.SetAppointmentStatus(ctx, appt.ID, StatusRejected, &reason, now); err != nil {
		return nil, fmt.Errorf("reject appointment: %w", err)
	}
	appt.Status = StatusRejected
	appt.RejectReason = &reason
	appt.UpdatedAt = now

	if slot != nil {
		if err := e.resyncLocked(ctx, tx, slot, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("appointment rejected",
		zap.Int("appointment_id", appt.ID),
		zap.String("slot", appt.Key().String()),
	)
	return appt, nil
}

// CompleteWithPass marks one approved appointment completed, deactivates its
// slot and issues the guidance pass, all in one transaction. Unlike slot
// retirement this touches only the named appointment.
func (e *Engine) CompleteWithPass(ctx context.Context, appointmentID, issuerID int) (*GuidancePass, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}

	slot, err := tx.LockSlotByKey(ctx, appt.Key())
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: no slot for %s", ErrNotFound, appt.Key())
	}

	appt, err = tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt.Status != StatusApproved {
		return nil, fmt.Errorf("%w: appointment %d is %s, only approved appointments can be completed", ErrInvalidTransition, appointmentID, appt.Status)
	}

	now := e.clock.Now()
	if err := tx.SetAppointmentStatus(ctx, appt.ID, StatusCompleted, nil, now); err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	if slot.Active {
		if err := tx.SetSlotActive(ctx, slot.ID, false, now); err != nil {
			return nil, fmt.Errorf("deactivate slot: %w", err)
		}
	}
	pass := &GuidancePass{
		AppointmentID: appt.ID,
		Serial:        uuid.NewString(),
		IssuedBy:      issuerID,
		IssuedAt:      now,
	}
	if err := tx.InsertGuidancePass(ctx, pass); err != nil {
		return nil, fmt.Errorf("insert guidance pass: %w", err)
	}
	if err := e.resyncLocked(ctx, tx, slot, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	e.logger.Info("guidance pass issued",
		zap.Int("appointment_id", appt.ID),
		zap.String("serial", pass.Serial),
		zap.Int("issued_by", issuerID),
	)
	return pass, nil
}

// Resync recomputes one slot's cached count (pending+approved) from live
// rows and persists it. Returns the fresh count.
func (e *Engine) Resync(ctx context.Context, key SlotKey) (int, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := tx.LockSlotByKey(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("lock slot: %w", err)
	}
	if slot == nil {
		return 0, fmt.Errorf("%w: no slot for %s", ErrNotFound, key)
	}
	if err := e.resyncLocked(ctx, tx, slot, e.clock.Now()); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return slot.CurrentCount, nil
}

// ResyncAll refreshes every slot's cached count and reports how many rows
// actually changed. Running it twice back to back reports zero the second
// time.
func (e *Engine) ResyncAll(ctx context.Context) (int, error) {
	slots, err := e.store.ListAllSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}

	changed := 0
	for _, slot := range slots {
		tx, err := e.store.Begin(ctx)
		if err != nil {
			return changed, fmt.Errorf("begin transaction: %w", err)
		}
		locked, err := tx.LockSlot(ctx, slot.ID)
		if err != nil {
			tx.Rollback(ctx)
			return changed, fmt.Errorf("lock slot: %w", err)
		}
		if locked == nil {
			tx.Rollback(ctx)
			continue
		}
		before := locked.CurrentCount
		if err := e.resyncLocked(ctx, tx, locked, e.clock.Now()); err != nil {
			tx.Rollback(ctx)
			return changed, err
		}
		if err := tx.Commit(ctx); err != nil {
			return changed, fmt.Errorf("commit transaction: %w", err)
		}
		if locked.CurrentCount != before {
			changed++
		}
	}
	return changed, nil
}

// GetSlot returns one slot by id.
func (e *Engine) GetSlot(ctx context.Context, id int) (*Slot, error) {
	slot, err := e.store.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return slot, nil
}

// GetAppointment returns one appointment by id.
func (e *Engine) GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %d", ErrNotFound, id)
	}
	return appt, nil
}

// ApprovedForSlot lists the approved appointments on one slot key.
func (e *Engine) ApprovedForSlot(ctx context.Context, key SlotKey) ([]Appointment, error) {
	appts, err := e.store.ListAppointments(ctx, key, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved appointments: %w", err)
	}
	return appts, nil
}

// resyncLocked writes the live pending+approved count into the slot's cache
// when it differs. The caller must hold the slot's row lock. The passed slot
// is updated in place.
func (e *Engine) resyncLocked(ctx context.Context, tx Tx, slot *Slot, now time.Time) error {
	count, err := tx.CountAppointments(ctx, slot.Key(), StatusPending, StatusApproved)
	if err != nil {
		return fmt.Errorf("count appointments: %w", err)
	}
	if count == slot.CurrentCount {
		return nil
	}
	if err := tx.SetSlotCount(ctx, slot.ID, count, now); err != nil {
		return fmt.Errorf("set slot count: %w", err)
	}
	slot.CurrentCount = count
	return nil
}

// checkNotPast rejects slots dated before today, or dated today with a time
// label that has already elapsed.
func (e *Engine) checkNotPast(key SlotKey, now time.Time) error {
	today := now.Format(DateLayout)
	if key.Date < today {
		return fmt.Errorf("%w: date %s", ErrTimePassed, key.Date)
	}
	if key.Date == today {
		at, err := key.At(now.Location())
		if err != nil {
			return err
		}
		if !at.After(now) {
			return fmt.Errorf("%w: time %s", ErrTimePassed, key.TimeLabel)
		}
	}
	return nil
}

// Today returns the current date on the office clock.
func (e *Engine) Today() string {
	return e.clock.Now().Format(DateLayout)
}

func sortSlotsChrono(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		mi, erri := slots[i].Key().MinuteOfDay()
		mj, errj := slots[j].Key().MinuteOfDay()
		if erri != nil || errj != nil {
			return slots[i].TimeLabel < slots[j].TimeLabel
		}
		return mi < mj
	})
}

func isConflict(err error) bool { return errors.Is(err, ErrConflict) }
func isInvalid(err error) bool  { return errors.Is(err, ErrInvalidInput) }

func isPassed(err error) bool { return errors.Is(err, ErrTimePassed) }
