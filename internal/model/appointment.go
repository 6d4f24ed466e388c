package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusReceived  AppointmentStatus = "received"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusReceived, AppointmentStatusNoShow, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is one scheduled visit. Date and Time are civil values in
// YYYY-MM-DD / HH:MM form; they are selected back from Postgres as text
// so a calendar date never passes through a time zone conversion.
type Appointment struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	UserID    uuid.UUID         `db:"user_id" json:"user_id"`
	Date      string            `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Code      string            `db:"code" json:"code"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`

	// Joined from users for the admin schedule view.
	PatientName  *string `db:"patient_name" json:"patient_name,omitempty"`
	PatientEmail *string `db:"patient_email" json:"patient_email,omitempty"`
}

type BookAppointmentRequest struct {
	Date string `json:"date" binding:"required" validate:"required,datetime=2006-01-02"`
	Time string `json:"time" binding:"required" validate:"required,datetime=15:04"`
	// Admins book on behalf of a patient; patients book for themselves.
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

type CheckInRequest struct {
	Date   string `json:"date" binding:"required"`
	Code   string `json:"code,omitempty"`
	QRData string `json:"qr_data,omitempty"`
}

// DayStats summarizes one date's schedule for the admin header cards.
type DayStats struct {
	Total     int `json:"total"`
	Received  int `json:"received"`
	NoShow    int `json:"no_show"`
	Cancelled int `json:"cancelled"`
	Pending   int `json:"pending"`
}

// Availability is what the booking form renders: the full slot sequence
// for a date with the occupied ones flagged.
type Availability struct {
	Date     string   `json:"date"`
	Times    []string `json:"times"`
	Occupied []string `json:"occupied"`
}
