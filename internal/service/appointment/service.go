package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/code"
	"github.com/jwalitptl/booking-api/pkg/dateutil"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/lock"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/qr"
)

// codeRetries bounds how often a booking retries after a confirmation
// code collided with another appointment on the same date.
const codeRetries = 3

// StatsInvalidator is notified after every mutation that changes the
// KPI input data.
type StatsInvalidator interface {
	Invalidate()
}

type Service struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	locker       lock.SlotLocker
	mailer       email.Sender
	stats        StatsInvalidator
	metrics      *metrics.Metrics
	log          *logger.Logger

	holidays dateutil.HolidaySet
	failOpen bool

	// now is swappable for tests.
	now func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	users repository.UserRepository,
	locker lock.SlotLocker,
	mailer email.Sender,
	stats StatsInvalidator,
	m *metrics.Metrics,
	log *logger.Logger,
	holidays []string,
	failOpen bool,
) *Service {
	return &Service{
		appointments: appointments,
		users:        users,
		locker:       locker,
		mailer:       mailer,
		stats:        stats,
		metrics:      m,
		log:          log,
		holidays:     dateutil.NewHolidaySet(holidays),
		failOpen:     failOpen,
		now:          time.Now,
	}
}

// Book reserves a slot for a patient. Admins may book on behalf of
// another patient through req.UserID; for everyone else the appointment
// is always their own, regardless of what the payload claims.
func (s *Service) Book(ctx context.Context, actor model.Actor, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if !dateutil.ValidSlot(req.Time) {
		return nil, errors.Validation(fmt.Sprintf("time %q is not a bookable slot", req.Time), nil)
	}
	if s.holidays.Contains(req.Date) {
		return nil, errors.Validation(fmt.Sprintf("date %s is not bookable", req.Date), nil)
	}
	instant, err := dateutil.SlotInstant(req.Date, req.Time)
	if err != nil {
		return nil, errors.Validation("invalid date or time", err)
	}
	if instant.Before(s.now()) {
		return nil, errors.PastSlot("the requested slot is in the past")
	}

	userID := actor.UserID
	if req.UserID != nil && *req.UserID != actor.UserID {
		if !actor.IsAdmin {
			return nil, errors.Permission("only staff can book for another patient", nil)
		}
		userID = *req.UserID
	}

	var appt *model.Appointment
	err = s.locker.WithSlotLock(ctx, req.Date, req.Time, func(ctx context.Context) error {
		taken, err := s.appointments.SlotTaken(ctx, req.Date, req.Time)
		if err != nil {
			return err
		}
		if taken {
			return errors.SlotOccupied("the slot is already booked")
		}
		if err := s.ensureProfile(ctx, actor, userID); err != nil {
			return err
		}
		appt, err = s.insertWithFreshCode(ctx, userID, req.Date, req.Time)
		return err
	})
	if err == lock.ErrNotAcquired {
		err = errors.SlotOccupied("the slot is being booked by someone else")
	}
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	s.metrics.BookingsCreated.Inc()
	s.stats.Invalidate()
	s.sendConfirmation(userID, appt)

	s.log.Info("appointment booked", "id", appt.ID, "date", appt.Date, "time", appt.Time)
	return appt, nil
}

// ensureProfile repairs a missing patient row before the insert hits the
// foreign key. A token can outlive its user row after a database reset;
// re-creating the profile from the token claims keeps bookings working.
func (s *Service) ensureProfile(ctx context.Context, actor model.Actor, userID uuid.UUID) error {
	_, err := s.users.GetByID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.KindNotFound) {
		return err
	}
	if userID != actor.UserID {
		return errors.ForeignKey("patient does not exist", nil)
	}
	s.log.Warn("recreating missing patient profile", "user_id", userID)
	_, _, err = s.users.Upsert(ctx, &model.User{
		ID:    userID,
		Email: actor.Email,
	})
	return err
}

// insertWithFreshCode generates a confirmation code and inserts, retrying
// a bounded number of times when the code collides on that date.
func (s *Service) insertWithFreshCode(ctx context.Context, userID uuid.UUID, date, slot string) (*model.Appointment, error) {
	var lastErr error
	for attempt := 0; attempt < codeRetries; attempt++ {
		c, err := code.Generate()
		if err != nil {
			return nil, err
		}
		appt := &model.Appointment{
			ID:     uuid.New(),
			UserID: userID,
			Date:   date,
			Time:   slot,
			Status: model.AppointmentStatusPending,
			Code:   c,
		}
		err = s.appointments.Create(ctx, appt)
		if err == nil {
			return appt, nil
		}
		if !errors.Is(err, errors.KindDuplicate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) countFailure(err error) {
	kind := errors.KindOf(err)
	if kind == errors.KindSlotOccupied {
		s.metrics.BookingConflicts.Inc()
		return
	}
	s.metrics.BookingFailures.WithLabelValues(kindLabel(kind)).Inc()
}

func kindLabel(k errors.Kind) string {
	switch k {
	case errors.KindPermission:
		return "permission"
	case errors.KindDuplicate:
		return "duplicate"
	case errors.KindForeignKey:
		return "foreign_key"
	case errors.KindSchemaMissing:
		return "schema_missing"
	case errors.KindPastSlot:
		return "past_slot"
	case errors.KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

func (s *Service) sendConfirmation(userID uuid.UUID, appt *model.Appointment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			s.log.Error(err, "confirmation email skipped", "appointment_id", appt.ID)
			return
		}
		if err := s.mailer.SendBookingConfirmation(user, appt); err != nil {
			s.log.Error(err, "confirmation email failed", "appointment_id", appt.ID)
		}
	}()
}

// AvailableDates lists the upcoming bookable civil dates.
func (s *Service) AvailableDates() []string {
	return dateutil.AvailableDates(s.now(), s.holidays)
}

// Availability returns the slot grid for a date with occupied slots
// flagged. When the occupancy read fails and fail-open is on, it
// degrades to the caller's own bookings for that date, and to a fully
// open grid if even that read fails; the insert path still rejects a
// real double booking.
func (s *Service) Availability(ctx context.Context, actor model.Actor, date string) (*model.Availability, error) {
	if _, err := dateutil.ParseLocalDate(date); err != nil {
		return nil, errors.Validation("invalid date", err)
	}
	availability := &model.Availability{
		Date:     date,
		Times:    dateutil.AvailableTimes(),
		Occupied: []string{},
	}
	occupied, err := s.appointments.OccupiedTimes(ctx, date)
	if err != nil {
		if !s.failOpen {
			return nil, err
		}
		s.log.Error(err, "occupancy read failed, degrading to own bookings", "date", date)
		availability.Occupied = s.ownOccupied(ctx, actor, date)
		return availability, nil
	}
	availability.Occupied = occupied
	return availability, nil
}

func (s *Service) ownOccupied(ctx context.Context, actor model.Actor, date string) []string {
	own, err := s.appointments.ListByUser(ctx, actor.UserID)
	if err != nil {
		return []string{}
	}
	occupied := []string{}
	for _, a := range own {
		if a.Date == date && a.Status != model.AppointmentStatusCancelled {
			occupied = append(occupied, a.Time)
		}
	}
	return occupied
}

// ListOwn returns the actor's appointment history, newest first.
func (s *Service) ListOwn(ctx context.Context, actor model.Actor) ([]model.Appointment, error) {
	return s.appointments.ListByUser(ctx, actor.UserID)
}

// Get returns one appointment; patients only see their own.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && appt.UserID != actor.UserID {
		return nil, errors.NotFound("appointment", nil)
	}
	return appt, nil
}

// Schedule returns the full schedule for one date with per-status totals.
func (s *Service) Schedule(ctx context.Context, date string) ([]model.Appointment, *model.DayStats, error) {
	if _, err := dateutil.ParseLocalDate(date); err != nil {
		return nil, nil, errors.Validation("invalid date", err)
	}
	appts, err := s.appointments.ListByDate(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	stats := &model.DayStats{Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case model.AppointmentStatusReceived:
			stats.Received++
		case model.AppointmentStatusNoShow:
			stats.NoShow++
		case model.AppointmentStatusCancelled:
			stats.Cancelled++
		case model.AppointmentStatusPending:
			stats.Pending++
		}
	}
	return appts, stats, nil
}

// MarkReceived moves a pending appointment to received.
func (s *Service) MarkReceived(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if !actor.IsAdmin {
		return errors.Permission("only staff can receive patients", nil)
	}
	return s.transition(ctx, id, model.AppointmentStatusReceived, nil)
}

// MarkNoShow moves a pending appointment to no-show. The slot must be in
// the past: a patient cannot be a no-show for a visit that has not
// started yet.
func (s *Service) MarkNoShow(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if !actor.IsAdmin {
		return errors.Permission("only staff can mark a no-show", nil)
	}
	return s.transition(ctx, id, model.AppointmentStatusNoShow, func(appt *model.Appointment) error {
		instant, err := dateutil.SlotInstant(appt.Date, appt.Time)
		if err != nil {
			return err
		}
		if instant.After(s.now()) {
			return errors.InvalidTransition("cannot mark a future appointment as no-show")
		}
		return nil
	})
}

// Cancel releases a slot. Patients cancel their own pending future
// appointments; staff can cancel any pending one regardless of time.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && appt.UserID != actor.UserID {
		return errors.NotFound("appointment", nil)
	}
	if appt.Status.Terminal() {
		return errors.InvalidTransition(fmt.Sprintf("appointment is already %s", appt.Status))
	}
	if !actor.IsAdmin {
		instant, err := dateutil.SlotInstant(appt.Date, appt.Time)
		if err != nil {
			return err
		}
		if !instant.After(s.now()) {
			return errors.InvalidTransition("a past appointment can no longer be cancelled")
		}
	}
	if err := s.appointments.UpdateStatus(ctx, id, appt.Status, model.AppointmentStatusCancelled); err != nil {
		return err
	}
	s.metrics.StatusTransitions.WithLabelValues(string(model.AppointmentStatusCancelled)).Inc()
	s.stats.Invalidate()
	s.log.Info("appointment cancelled", "id", id)
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, next model.AppointmentStatus, guard func(*model.Appointment) error) error {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != model.AppointmentStatusPending {
		return errors.InvalidTransition(fmt.Sprintf("appointment is already %s", appt.Status))
	}
	if guard != nil {
		if err := guard(appt); err != nil {
			return err
		}
	}
	if err := s.appointments.UpdateStatus(ctx, id, model.AppointmentStatusPending, next); err != nil {
		return err
	}
	s.metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
	s.stats.Invalidate()
	s.log.Info("appointment status changed", "id", id, "to", next)
	return nil
}

// CheckIn resolves a scanned QR payload or a hand-typed code against the
// given date and marks the appointment received.
func (s *Service) CheckIn(ctx context.Context, actor model.Actor, req *model.CheckInRequest) (*model.Appointment, error) {
	if !actor.IsAdmin {
		return nil, errors.Permission("only staff can check patients in", nil)
	}
	if _, err := dateutil.ParseLocalDate(req.Date); err != nil {
		return nil, errors.Validation("invalid date", err)
	}

	var (
		confirmation string
		method       string
	)
	switch {
	case req.QRData != "":
		payload, err := qr.Decode(req.QRData)
		if err != nil {
			return nil, errors.Validation("unreadable QR code", err)
		}
		confirmation = code.Normalize(payload.Code)
		method = "qr"
	case req.Code != "":
		confirmation = code.Normalize(req.Code)
		method = "code"
	default:
		return nil, errors.Validation("either a code or QR data is required", nil)
	}
	if !code.Valid(confirmation) {
		return nil, errors.Validation("malformed confirmation code", nil)
	}

	appt, err := s.appointments.FindByCodeAndDate(ctx, confirmation, req.Date)
	if err != nil {
		return nil, err
	}
	if appt.Status != model.AppointmentStatusPending {
		return nil, errors.InvalidTransition(fmt.Sprintf("appointment is already %s", appt.Status))
	}
	if err := s.appointments.UpdateStatus(ctx, appt.ID, model.AppointmentStatusPending, model.AppointmentStatusReceived); err != nil {
		return nil, err
	}
	appt.Status = model.AppointmentStatusReceived

	s.metrics.CheckIns.WithLabelValues(method).Inc()
	s.metrics.StatusTransitions.WithLabelValues(string(model.AppointmentStatusReceived)).Inc()
	s.stats.Invalidate()
	s.log.Info("patient checked in", "id", appt.ID, "method", method)
	return appt, nil
}

// QRCode renders the appointment's check-in QR as a PNG.
func (s *Service) QRCode(ctx context.Context, actor model.Actor, id uuid.UUID, size int) ([]byte, error) {
	appt, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return qr.Encode(qr.Payload{
		AppointmentID: appt.ID.String(),
		Code:          appt.Code,
	}, size)
}
