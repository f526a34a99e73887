package scheduling

import "time"

// Status is the appointment lifecycle state. Transitions are one-directional:
// pending -> approved or rejected, approved -> completed. Rejected and
// completed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// DefaultMaxCapacity is applied when a slot is created without an explicit
// capacity.
const DefaultMaxCapacity = 3

// Slot is one offerable (date, time label) pair with a capacity. CurrentCount
// is an advisory cache of pending+approved appointments; admission decisions
// always recount from live appointment rows.
type Slot struct {
	ID           int       `json:"id_slot"`
	Date         string    `json:"slot_date"`
	TimeLabel    string    `json:"time_label"`
	MaxCapacity  int       `json:"max_capacity"`
	CurrentCount int       `json:"current_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key returns the slot's composite natural key.
func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, TimeLabel: s.TimeLabel}
}

// Appointment is a student's request to occupy one slot. Date and TimeLabel
// are denormalized copies of the slot key.
type Appointment struct {
	ID             int       `json:"id_appointment"`
	StudentID      int       `json:"id_student"`
	StudentName    string    `json:"student_name"`
	ProgramSection string    `json:"program_section"`
	Reason         string    `json:"reason"`
	Date           string    `json:"appointment_date"`
	TimeLabel      string    `json:"time_label"`
	Status         Status    `json:"status"`
	RejectReason   *string   `json:"reject_reason"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key returns the appointment's slot key.
func (a Appointment) Key() SlotKey {
	return SlotKey{Date: a.Date, TimeLabel: a.TimeLabel}
}

// GuidancePass is the record issued when a counselor completes an approved
// appointment. One pass per appointment; immutable once written.
type GuidancePass struct {
	ID            int       `json:"id_pass"`
	AppointmentID int       `json:"id_appointment"`
	Serial        string    `json:"serial"`
	IssuedBy      int       `json:"issued_by"`
	IssuedAt      time.Time `json:"issued_at"`
}

// SkippedSlot reports one entry of a bulk create that was not persisted.
type SkippedSlot struct {
	TimeLabel string `json:"time_label"`
	Reason    string `json:"reason"`
}

// SlotWithLiveCounts is the staff-facing listing row: the slot plus counts
// recomputed from live appointment data instead of the cached count.
type SlotWithLiveCounts struct {
	Slot
	LiveCount     int `json:"live_count"`
	ApprovedCount int `json:"approved_count"`
}
