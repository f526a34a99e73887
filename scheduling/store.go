package scheduling

import (
	"context"
	"time"
)

// Queries is the data surface the engine needs. It is implemented both by the
// connection pool (for plain reads) and by an open transaction, so engine code
// can run the same calls inside or outside a lock.
//
// Lookup methods return (nil, nil) when the row does not exist; the engine
// decides which sentinel error that maps to.
type Queries interface {
	GetSlot(ctx context.Context, id int) (*Slot, error)
	GetSlotByKey(ctx context.Context, key SlotKey) (*Slot, error)
	SlotExists(ctx context.Context, key SlotKey) (bool, error)
	ListActiveSlots(ctx context.Context, fromDate string) ([]Slot, error)
	ListSlotsForDate(ctx context.Context, date string) ([]Slot, error)
	ListActiveSlotsOn(ctx context.Context, date string) ([]Slot, error)
	ListAllSlots(ctx context.Context) ([]Slot, error)
	InsertSlot(ctx context.Context, slot *Slot) error
	UpdateSlot(ctx context.Context, slot *Slot) error
	SetSlotActive(ctx context.Context, id int, active bool, updatedAt time.Time) error
	SetSlotCount(ctx context.Context, id int, count int, updatedAt time.Time) error
	DeleteSlot(ctx context.Context, id int) error

	GetAppointment(ctx context.Context, id int) (*Appointment, error)
	InsertAppointment(ctx context.Context, appt *Appointment) error
	SetAppointmentStatus(ctx context.Context, id int, status Status, reason *string, updatedAt time.Time) error
	CountAppointments(ctx context.Context, key SlotKey, statuses ...Status) (int, error)
	ListAppointments(ctx context.Context, key SlotKey, status Status) ([]Appointment, error)

	InsertGuidancePass(ctx context.Context, pass *GuidancePass) error
}

// Tx is a transaction holding (or able to take) the per-slot lock that
// serializes capacity decisions for one (date, time) key.
type Tx interface {
	Queries
	// LockSlot takes an exclusive lock on the slot row and returns its current
	// state, or (nil, nil) when the slot does not exist.
	LockSlot(ctx context.Context, id int) (*Slot, error)
	LockSlotByKey(ctx context.Context, key SlotKey) (*Slot, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the engine's durable backend.
type Store interface {
	Queries
	Begin(ctx context.Context) (Tx, error)
}
