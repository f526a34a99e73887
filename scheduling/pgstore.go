package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same query code serves reads on the pool and writes inside a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the PostgreSQL-backed Store. Slot row locks are plain
// SELECT ... FOR UPDATE, so unrelated slots never contend.
type PGStore struct {
	pgQueries
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pgQueries: pgQueries{db: pool}, pool: pool}
}

func (s *PGStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTx{pgQueries: pgQueries{db: tx}, tx: tx}, nil
}

type pgTx struct {
	pgQueries
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *pgTx) LockSlot(ctx context.Context, id int) (*Slot, error) {
	return t.scanSlotRow(t.db.QueryRow(ctx,
		slotColumns+` FROM time_slots WHERE id_slot = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	return t.scanSlotRow(t.db.QueryRow(ctx,
		slotColumns+` FROM time_slots WHERE slot_date = $1 AND time_label = $2 FOR UPDATE`,
		key.Date, key.TimeLabel))
}

type pgQueries struct {
	db pgQuerier
}

const slotColumns = `SELECT id_slot, slot_date, time_label, max_capacity, current_count, active, created_at, updated_at`

const apptColumns = `SELECT id_appointment, id_student, student_name, program_section, reason,
	appointment_date, time_label, status, reject_reason, created_at, updated_at`

func (q pgQueries) GetSlot(ctx context.Context, id int) (*Slot, error) {
	return q.scanSlotRow(q.db.QueryRow(ctx,
		slotColumns+` FROM time_slots WHERE id_slot = $1`, id))
}

func (q pgQueries) GetSlotByKey(ctx context.Context, key SlotKey) (*Slot, error) {
	return q.scanSlotRow(q.db.QueryRow(ctx,
		slotColumns+` FROM time_slots WHERE slot_date = $1 AND time_label = $2`,
		key.Date, key.TimeLabel))
}

func (q pgQueries) SlotExists(ctx context.Context, key SlotKey) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM time_slots WHERE slot_date = $1 AND time_label = $2)`,
		key.Date, key.TimeLabel).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}
	return exists, nil
}

func (q pgQueries) ListActiveSlots(ctx context.Context, fromDate string) ([]Slot, error) {
	return q.listSlots(ctx,
		slotColumns+` FROM time_slots WHERE active = true AND slot_date >= $1 ORDER BY slot_date, time_label`,
		fromDate)
}

func (q pgQueries) ListSlotsForDate(ctx context.Context, date string) ([]Slot, error) {
	return q.listSlots(ctx,
		slotColumns+` FROM time_slots WHERE slot_date = $1 ORDER BY time_label`, date)
}

func (q pgQueries) ListActiveSlotsOn(ctx context.Context, date string) ([]Slot, error) {
	return q.listSlots(ctx,
		slotColumns+` FROM time_slots WHERE active = true AND slot_date = $1`, date)
}

func (q pgQueries) ListAllSlots(ctx context.Context) ([]Slot, error) {
	return q.listSlots(ctx, slotColumns+` FROM time_slots ORDER BY slot_date, time_label`)
}

func (q pgQueries) InsertSlot(ctx context.Context, slot *Slot) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO time_slots (slot_date, time_label, max_capacity, current_count, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id_slot`,
		slot.Date, slot.TimeLabel, slot.MaxCapacity, slot.CurrentCount, slot.Active,
		slot.CreatedAt, slot.UpdatedAt).Scan(&slot.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a slot for %s already exists", ErrConflict, slot.Key())
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (q pgQueries) UpdateSlot(ctx context.Context, slot *Slot) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE time_slots SET slot_date = $1, time_label = $2, max_capacity = $3, updated_at = $4
		 WHERE id_slot = $5`,
		slot.Date, slot.TimeLabel, slot.MaxCapacity, slot.UpdatedAt, slot.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a slot for %s already exists", ErrConflict, slot.Key())
		}
		return fmt.Errorf("update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, slot.ID)
	}
	return nil
}

func (q pgQueries) SetSlotActive(ctx context.Context, id int, active bool, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE time_slots SET active = $1, updated_at = $2 WHERE id_slot = $3`,
		active, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set slot active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return nil
}

func (q pgQueries) SetSlotCount(ctx context.Context, id int, count int, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE time_slots SET current_count = $1, updated_at = $2 WHERE id_slot = $3`,
		count, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set slot count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return nil
}

func (q pgQueries) DeleteSlot(ctx context.Context, id int) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM time_slots WHERE id_slot = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return nil
}

func (q pgQueries) GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	return q.scanApptRow(q.db.QueryRow(ctx,
		apptColumns+` FROM appointments WHERE id_appointment = $1`, id))
}

func (q pgQueries) InsertAppointment(ctx context.Context, appt *Appointment) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO appointments (id_student, student_name, program_section, reason,
		   appointment_date, time_label, status, reject_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id_appointment`,
		appt.StudentID, appt.StudentName, appt.ProgramSection, appt.Reason,
		appt.Date, appt.TimeLabel, appt.Status, appt.RejectReason,
		appt.CreatedAt, appt.UpdatedAt).Scan(&appt.ID)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (q pgQueries) SetAppointmentStatus(ctx context.Context, id int, status Status, reason *string, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE appointments SET status = $1, reject_reason = $2, updated_at = $3 WHERE id_appointment = $4`,
		status, reason, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
	}
	return nil
}

func (q pgQueries) CountAppointments(ctx context.Context, key SlotKey, statuses ...Status) (int, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE appointment_date = $1 AND time_label = $2`
	args := []any{key.Date, key.TimeLabel}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			args = append(args, st)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}

	var count int
	if err := q.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return count, nil
}

func (q pgQueries) ListAppointments(ctx context.Context, key SlotKey, status Status) ([]Appointment, error) {
	rows, err := q.db.Query(ctx,
		apptColumns+` FROM appointments
		 WHERE appointment_date = $1 AND time_label = $2 AND status = $3
		 ORDER BY id_appointment`,
		key.Date, key.TimeLabel, status)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.StudentID, &a.StudentName, &a.ProgramSection, &a.Reason,
			&a.Date, &a.TimeLabel, &a.Status, &a.RejectReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (q pgQueries) InsertGuidancePass(ctx context.Context, pass *GuidancePass) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO guidance_passes (id_appointment, serial, issued_by, issued_at)
		 VALUES ($1, $2, $3, $4) RETURNING id_pass`,
		pass.AppointmentID, pass.Serial, pass.IssuedBy, pass.IssuedAt).Scan(&pass.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: appointment %d already has a pass", ErrConflict, pass.AppointmentID)
		}
		return fmt.Errorf("insert guidance pass: %w", err)
	}
	return nil
}

func (q pgQueries) listSlots(ctx context.Context, query string, args ...any) ([]Slot, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.Date, &s.TimeLabel, &s.MaxCapacity, &s.CurrentCount,
			&s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (q pgQueries) scanSlotRow(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.Date, &s.TimeLabel, &s.MaxCapacity, &s.CurrentCount,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	return &s, nil
}

func (q pgQueries) scanApptRow(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.StudentID, &a.StudentName, &a.ProgramSection, &a.Reason,
		&a.Date, &a.TimeLabel, &a.Status, &a.RejectReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
