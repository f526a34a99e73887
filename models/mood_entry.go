package models

import (
	"time"
)

// Moods accepted by the daily check-in.
const (
	MoodGreat      = "great"
	MoodGood       = "good"
	MoodOkay       = "okay"
	MoodSad        = "sad"
	MoodStruggling = "struggling"
)

// MoodEntry is one daily check-in from a student.
type MoodEntry struct {
	IDEntry   int       `json:"id_entry" db:"id_entry"`
	IDStudent int       `json:"id_student" db:"id_student"`
	Mood      string    `json:"mood" db:"mood"`
	Note      *string   `json:"note" db:"note"`
	EntryDate string    `json:"entry_date" db:"entry_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MoodEntryRequest struct {
	Mood string  `json:"mood" validate:"required,oneof=great good okay sad struggling"`
	Note *string `json:"note"`
}
