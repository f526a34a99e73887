package models

// AppointmentReport aggregates appointment volume for a date range.
type AppointmentReport struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByDate   map[string]int `json:"by_date"`
	FromDate string         `json:"from_date,omitempty"`
	ToDate   string         `json:"to_date,omitempty"`
}

// SlotUtilizationRow is one slot's occupancy in the utilization report.
type SlotUtilizationRow struct {
	SlotDate      string `json:"slot_date"`
	TimeLabel     string `json:"time_label"`
	MaxCapacity   int    `json:"max_capacity"`
	ApprovedCount int    `json:"approved_count"`
	PendingCount  int    `json:"pending_count"`
	Active        bool   `json:"active"`
}

// MoodReport summarizes check-ins over a date range.
type MoodReport struct {
	Total    int            `json:"total"`
	ByMood   map[string]int `json:"by_mood"`
	FromDate string         `json:"from_date,omitempty"`
	ToDate   string         `json:"to_date,omitempty"`
}
