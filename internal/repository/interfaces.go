package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwalitptl/booking-api/internal/model"
)

// AppointmentRepository is the persistence boundary for scheduled visits.
// Implementations classify driver errors into pkg/errors kinds so the
// service layer never inspects SQLSTATEs or error strings.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// UpdateStatus transitions id from expected to next in one statement;
	// it fails with KindInvalidTransition when the row moved on already.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next model.AppointmentStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Appointment, error)
	ListByDate(ctx context.Context, date string) ([]model.Appointment, error)
	// OccupiedTimes returns the HH:MM slots on date holding a live
	// (non-cancelled) appointment.
	OccupiedTimes(ctx context.Context, date string) ([]string, error)
	SlotTaken(ctx context.Context, date, slot string) (bool, error)
	FindByCodeAndDate(ctx context.Context, code, date string) (*model.Appointment, error)
	ListAll(ctx context.Context) ([]model.Appointment, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Upsert inserts the user or, on an email collision, refreshes the
	// profile fields of the existing row and reports its id back.
	Upsert(ctx context.Context, user *model.User) (uuid.UUID, bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName, phone *string) error
	ListPatients(ctx context.Context, search string) ([]model.PatientSummary, error)
	CountPatients(ctx context.Context) (int, error)
}
