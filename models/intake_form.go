package models

import (
	"time"
)

// IntakeForm is the one-per-student profile the guidance office keeps on file.
type IntakeForm struct {
	IDForm          int       `json:"id_form" db:"id_form"`
	IDStudent       int       `json:"id_student" db:"id_student"`
	Nickname        *string   `json:"nickname" db:"nickname"`
	Birthdate       *string   `json:"birthdate" db:"birthdate"`
	Address         *string   `json:"address" db:"address"`
	ContactNumber   *string   `json:"contact_number" db:"contact_number"`
	GuardianName    *string   `json:"guardian_name" db:"guardian_name"`
	GuardianContact *string   `json:"guardian_contact" db:"guardian_contact"`
	Concerns        *string   `json:"concerns" db:"concerns"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type IntakeFormRequest struct {
	Nickname        *string `json:"nickname" validate:"omitempty,max=100"`
	Birthdate       *string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	Address         *string `json:"address"`
	ContactNumber   *string `json:"contact_number" validate:"omitempty,max=30"`
	GuardianName    *string `json:"guardian_name" validate:"omitempty,max=200"`
	GuardianContact *string `json:"guardian_contact" validate:"omitempty,max=30"`
	Concerns        *string `json:"concerns"`
}
