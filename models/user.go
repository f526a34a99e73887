package models

import (
	"time"
)

// Roles recognized by the access guards.
const (
	RoleStudent   = "student"
	RoleCounselor = "counselor"
	RoleAdmin     = "admin"
)

// User maps the users table.
type User struct {
	IDUser         int       `json:"id_user" db:"id_user"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Password       string    `json:"password,omitempty" db:"password"`
	Role           string    `json:"role" db:"role"`
	ProgramSection string    `json:"program_section" db:"program_section"`
	MFAEnabled     bool      `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecret      string    `json:"-" db:"mfa_secret"`
	BackupCodes    string    `json:"-" db:"backup_codes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// UserResponse is the user shape returned to clients, without credentials.
type UserResponse struct {
	ID             int       `json:"id_user"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	ProgramSection string    `json:"program_section,omitempty"`
	MFAEnabled     bool      `json:"mfa_enabled"`
	CreatedAt      time.Time `json:"created_at"`
}

type RegisterRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Role           string `json:"role" validate:"omitempty,oneof=student counselor admin"`
	ProgramSection string `json:"program_section" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type LoginResponse struct {
	RequiresMFA  bool         `json:"requires_mfa"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int          `json:"expires_in,omitempty"`
	User         UserResponse `json:"user,omitempty"`
}

// RefreshToken maps the refresh_tokens table.
type RefreshToken struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	IsRevoked bool      `json:"is_revoked" db:"is_revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type MFASetupRequest struct {
	Password string `json:"password" validate:"required"`
}

type MFASetupResponse struct {
	Secret      string   `json:"secret"`
	QRCodeURL   string   `json:"qr_code_url"`
	BackupCodes []string `json:"backup_codes"`
}

type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}
