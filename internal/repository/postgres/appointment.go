package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

// Date and time columns are read back through to_char so the driver never
// converts a civil date through the session time zone.
const appointmentColumns = `
	a.id, a.user_id,
	to_char(a.date, 'YYYY-MM-DD') AS date,
	to_char(a.time, 'HH24:MI') AS time,
	a.status, a.code, a.created_at, a.updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (id, user_id, date, time, status, code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		appt.ID, appt.UserID, appt.Date, appt.Time, appt.Status, appt.Code,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", classify(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments a WHERE a.id = $1`, appointmentColumns)

	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", classify(err))
	}
	return &appt, nil
}

// UpdateStatus is a compare-and-set: the WHERE clause pins the expected
// status so two admins acting on the same row cannot both win.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return errors.InvalidTransition(
			fmt.Sprintf("appointment is no longer %s", expected))
	}
	return nil
}

func (r *appointmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM appointments a
		WHERE a.user_id = $1
		ORDER BY a.date DESC, a.time DESC`, appointmentColumns)

	appts := []model.Appointment{}
	if err := r.db.SelectContext(ctx, &appts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", classify(err))
	}
	return appts, nil
}

func (r *appointmentRepository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s, u.full_name AS patient_name, u.email AS patient_email
		FROM appointments a
		JOIN users u ON u.id = a.user_id
		WHERE a.date = $1
		ORDER BY a.time ASC`, appointmentColumns)

	appts := []model.Appointment{}
	if err := r.db.SelectContext(ctx, &appts, query, date); err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", classify(err))
	}
	return appts, nil
}

func (r *appointmentRepository) OccupiedTimes(ctx context.Context, date string) ([]string, error) {
	query := `
		SELECT to_char(time, 'HH24:MI')
		FROM appointments
		WHERE date = $1 AND status <> $2
		ORDER BY time ASC`

	times := []string{}
	if err := r.db.SelectContext(ctx, &times, query, date, model.AppointmentStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to read occupied slots: %w", classify(err))
	}
	return times, nil
}

func (r *appointmentRepository) SlotTaken(ctx context.Context, date, slot string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE date = $1 AND time = $2 AND status <> $3
		)`

	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, date, slot, model.AppointmentStatusCancelled); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", classify(err))
	}
	return taken, nil
}

func (r *appointmentRepository) FindByCodeAndDate(ctx context.Context, code, date string) (*model.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s, u.full_name AS patient_name, u.email AS patient_email
		FROM appointments a
		JOIN users u ON u.id = a.user_id
		WHERE a.code = $1 AND a.date = $2`, appointmentColumns)

	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, code, date); err != nil {
		return nil, fmt.Errorf("failed to find appointment by code: %w", classify(err))
	}
	return &appt, nil
}

func (r *appointmentRepository) ListAll(ctx context.Context) ([]model.Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM appointments a
		ORDER BY a.date ASC, a.time ASC`, appointmentColumns)

	appts := []model.Appointment{}
	if err := r.db.SelectContext(ctx, &appts, query); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", classify(err))
	}
	return appts, nil
}
