package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered identity plus its patient profile. FullName and
// Phone stay optional: self-registered patients may leave them empty and
// fill them in later.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     *string   `db:"full_name" json:"full_name,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName resolves what the UI shows for this user.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// CreatePatientRequest is the privileged admin patient-creation payload.
type CreatePatientRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty"`
}

// CreatePatientResponse mirrors the provisioning endpoint's contract.
type CreatePatientResponse struct {
	Success bool      `json:"success"`
	UserID  uuid.UUID `json:"user_id"`
	Note    string    `json:"note,omitempty"`
}

// PatientSummary is one row of the admin patient directory.
type PatientSummary struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	FullName         *string   `db:"full_name" json:"full_name,omitempty"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	AppointmentCount int       `db:"appointment_count" json:"appointment_count"`
}
