package appointment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/code"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/lock"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// promauto registers in the default registry, so the package shares one
// metrics instance across tests.
var testMetrics = metrics.NewMetrics("appointment_service_test")

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	rows         map[uuid.UUID]*model.Appointment
	order        []uuid.UUID
	failOccupied bool
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{rows: map[uuid.UUID]*model.Appointment{}}
}

func (f *fakeAppointmentRepo) Create(_ context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Date == appt.Date && row.Time == appt.Time && row.Status != model.AppointmentStatusCancelled {
			return errors.SlotOccupied("the slot was just taken")
		}
		if row.Date == appt.Date && row.Code == appt.Code {
			return errors.Duplicate("appointment code collision", nil)
		}
	}
	cp := *appt
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.rows[appt.ID] = &cp
	f.order = append(f.order, appt.ID)
	return nil
}

func (f *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, expected, next model.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != expected {
		return errors.InvalidTransition("appointment moved on")
	}
	row.Status = next
	return nil
}

func (f *fakeAppointmentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Appointment{}
	for _, id := range f.order {
		if f.rows[id].UserID == userID {
			out = append(out, *f.rows[id])
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListByDate(_ context.Context, date string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Appointment{}
	for _, id := range f.order {
		if f.rows[id].Date == date {
			out = append(out, *f.rows[id])
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) OccupiedTimes(_ context.Context, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOccupied {
		return nil, stderrors.New("storage down")
	}
	out := []string{}
	for _, id := range f.order {
		row := f.rows[id]
		if row.Date == date && row.Status != model.AppointmentStatusCancelled {
			out = append(out, row.Time)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) SlotTaken(_ context.Context, date, slot string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Date == date && row.Time == slot && row.Status != model.AppointmentStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointmentRepo) FindByCodeAndDate(_ context.Context, c, date string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Code == c && row.Date == date {
			cp := *row
			return &cp, nil
		}
	}
	return nil, errors.NotFound("appointment", nil)
}

func (f *fakeAppointmentRepo) ListAll(_ context.Context) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Appointment{}
	for _, id := range f.order {
		out = append(out, *f.rows[id])
	}
	return out, nil
}

type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: map[uuid.UUID]*model.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Email == u.Email {
			return row.ID, false, nil
		}
	}
	f.rows[u.ID] = u
	return u.ID, true, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, fullName, phone *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return errors.NotFound("user", nil)
	}
	if fullName != nil {
		u.FullName = fullName
	}
	if phone != nil {
		u.Phone = phone
	}
	return nil
}

func (f *fakeUserRepo) ListPatients(context.Context, string) ([]model.PatientSummary, error) {
	return nil, nil
}

func (f *fakeUserRepo) CountPatients(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent int
}

func (f *fakeMailer) SendBookingConfirmation(*model.User, *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeMailer) SendWelcome(*model.User, string) error { return nil }

type fakeStats struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeStats) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

type fixture struct {
	svc     *Service
	appts   *fakeAppointmentRepo
	users   *fakeUserRepo
	stats   *fakeStats
	patient model.Actor
	admin   model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	appts := newFakeAppointmentRepo()
	users := newFakeUserRepo()
	stats := &fakeStats{}
	log := logger.NewLogger(nil)

	patientID := uuid.New()
	adminID := uuid.New()
	require.NoError(t, users.Create(context.Background(), &model.User{ID: patientID, Email: "ana@example.com"}))
	require.NoError(t, users.Create(context.Background(), &model.User{ID: adminID, Email: "staff@example.com", IsAdmin: true}))

	svc := NewService(appts, users, lock.NoopLocker{}, &fakeMailer{}, stats, testMetrics, log, nil, true)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local)
	}

	return &fixture{
		svc:     svc,
		appts:   appts,
		users:   users,
		stats:   stats,
		patient: model.Actor{UserID: patientID, Email: "ana@example.com"},
		admin:   model.Actor{UserID: adminID, Email: "staff@example.com", IsAdmin: true},
	}
}

func (fx *fixture) book(t *testing.T, actor model.Actor, date, slot string) *model.Appointment {
	t.Helper()
	appt, err := fx.svc.Book(context.Background(), actor, &model.BookAppointmentRequest{Date: date, Time: slot})
	require.NoError(t, err)
	return appt
}

func TestBookAssignsPendingStatusAndCode(t *testing.T) {
	fx := newFixture(t)

	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Equal(t, fx.patient.UserID, appt.UserID)
	assert.True(t, code.Valid(appt.Code), "code %q should match the confirmation shape", appt.Code)
	assert.Positive(t, fx.stats.calls)
}

func TestBookRejectsDoubleBooking(t *testing.T) {
	fx := newFixture(t)
	fx.book(t, fx.patient, "2025-06-11", "10:00")

	_, err := fx.svc.Book(context.Background(), fx.admin, &model.BookAppointmentRequest{Date: "2025-06-11", Time: "10:00"})
	assert.True(t, errors.Is(err, errors.KindSlotOccupied))
}

func TestBookRejectsPastSlot(t *testing.T) {
	fx := newFixture(t)

	// now is fixed at 2025-06-10 09:00, so 08:30 the same day is gone.
	_, err := fx.svc.Book(context.Background(), fx.patient, &model.BookAppointmentRequest{Date: "2025-06-10", Time: "08:30"})
	assert.True(t, errors.Is(err, errors.KindPastSlot))
}

func TestBookAcceptsSlotStartingRightNow(t *testing.T) {
	fx := newFixture(t)

	// now is fixed at exactly 2025-06-10 09:00; only strictly earlier
	// slots are rejected.
	appt := fx.book(t, fx.patient, "2025-06-10", "09:00")
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
}

func TestBookRejectsOffGridSlot(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Book(context.Background(), fx.patient, &model.BookAppointmentRequest{Date: "2025-06-11", Time: "10:15"})
	assert.True(t, errors.Is(err, errors.KindValidation))
}

func TestBookOnBehalfRequiresAdmin(t *testing.T) {
	fx := newFixture(t)
	other := uuid.New()

	_, err := fx.svc.Book(context.Background(), fx.patient, &model.BookAppointmentRequest{
		Date: "2025-06-11", Time: "10:00", UserID: &other,
	})
	assert.True(t, errors.Is(err, errors.KindPermission))
}

func TestBookRecreatesMissingProfile(t *testing.T) {
	fx := newFixture(t)
	ghost := model.Actor{UserID: uuid.New(), Email: "ghost@example.com"}

	appt, err := fx.svc.Book(context.Background(), ghost, &model.BookAppointmentRequest{Date: "2025-06-11", Time: "11:00"})
	require.NoError(t, err)

	user, err := fx.users.GetByID(context.Background(), appt.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ghost@example.com", user.Email)
}

func TestCancelFreesTheSlot(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	require.NoError(t, fx.svc.Cancel(context.Background(), fx.patient, appt.ID))

	rebooked := fx.book(t, fx.patient, "2025-06-11", "10:00")
	assert.NotEqual(t, appt.ID, rebooked.ID)
}

func TestCancelRejectsForeignAppointment(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	stranger := model.Actor{UserID: uuid.New(), Email: "x@example.com"}
	err := fx.svc.Cancel(context.Background(), stranger, appt.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestMarkReceivedIsTerminal(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	require.NoError(t, fx.svc.MarkReceived(context.Background(), fx.admin, appt.ID))

	err := fx.svc.Cancel(context.Background(), fx.admin, appt.ID)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))
}

func TestMarkReceivedRequiresAdmin(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	err := fx.svc.MarkReceived(context.Background(), fx.patient, appt.ID)
	assert.True(t, errors.Is(err, errors.KindPermission))
}

func TestMarkNoShowOnlyAfterSlotPassed(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	err := fx.svc.MarkNoShow(context.Background(), fx.admin, appt.ID)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))

	fx.svc.now = func() time.Time {
		return time.Date(2025, 6, 11, 10, 30, 0, 0, time.Local)
	}
	assert.NoError(t, fx.svc.MarkNoShow(context.Background(), fx.admin, appt.ID))
}

func TestCheckInByManualCode(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	got, err := fx.svc.CheckIn(context.Background(), fx.admin, &model.CheckInRequest{
		Date: "2025-06-11",
		Code: "  " + appt.Code + "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusReceived, got.Status)
}

func TestCheckInByQRPayload(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	payload, err := json.Marshal(map[string]string{
		"appointmentId": appt.ID.String(),
		"code":          appt.Code,
	})
	require.NoError(t, err)

	got, err := fx.svc.CheckIn(context.Background(), fx.admin, &model.CheckInRequest{
		Date:   "2025-06-11",
		QRData: string(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, model.AppointmentStatusReceived, got.Status)
}

func TestCheckInTwiceFails(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	_, err := fx.svc.CheckIn(context.Background(), fx.admin, &model.CheckInRequest{Date: "2025-06-11", Code: appt.Code})
	require.NoError(t, err)

	_, err = fx.svc.CheckIn(context.Background(), fx.admin, &model.CheckInRequest{Date: "2025-06-11", Code: appt.Code})
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))
}

func TestCheckInWrongDateNotFound(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	_, err := fx.svc.CheckIn(context.Background(), fx.admin, &model.CheckInRequest{Date: "2025-06-12", Code: appt.Code})
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestAvailabilityFlagsOccupiedSlots(t *testing.T) {
	fx := newFixture(t)
	fx.book(t, fx.patient, "2025-06-11", "10:00")
	cancelled := fx.book(t, fx.patient, "2025-06-11", "12:00")
	require.NoError(t, fx.svc.Cancel(context.Background(), fx.patient, cancelled.ID))

	got, err := fx.svc.Availability(context.Background(), fx.patient, "2025-06-11")
	require.NoError(t, err)
	assert.Len(t, got.Times, 24)
	assert.Equal(t, []string{"10:00"}, got.Occupied)
}

func TestAvailabilityDegradesToOwnBookings(t *testing.T) {
	fx := newFixture(t)
	fx.book(t, fx.patient, "2025-06-11", "10:00")
	fx.appts.failOccupied = true

	got, err := fx.svc.Availability(context.Background(), fx.patient, "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, got.Occupied)

	stranger := model.Actor{UserID: uuid.New(), Email: "x@example.com"}
	got, err = fx.svc.Availability(context.Background(), stranger, "2025-06-11")
	require.NoError(t, err)
	assert.Empty(t, got.Occupied)
}

func TestAvailabilityFailsClosedWhenConfigured(t *testing.T) {
	fx := newFixture(t)
	fx.svc.failOpen = false
	fx.appts.failOccupied = true

	_, err := fx.svc.Availability(context.Background(), fx.patient, "2025-06-11")
	assert.Error(t, err)
}

func TestPatientCannotCancelPastAppointment(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	fx.svc.now = func() time.Time {
		return time.Date(2025, 6, 11, 11, 0, 0, 0, time.Local)
	}

	err := fx.svc.Cancel(context.Background(), fx.patient, appt.ID)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))

	// Staff can still release the slot.
	assert.NoError(t, fx.svc.Cancel(context.Background(), fx.admin, appt.ID))
}

func TestScheduleCountsByStatus(t *testing.T) {
	fx := newFixture(t)
	a := fx.book(t, fx.patient, "2025-06-11", "10:00")
	b := fx.book(t, fx.patient, "2025-06-11", "11:00")
	fx.book(t, fx.patient, "2025-06-11", "12:00")

	require.NoError(t, fx.svc.MarkReceived(context.Background(), fx.admin, a.ID))
	require.NoError(t, fx.svc.Cancel(context.Background(), fx.admin, b.ID))

	_, stats, err := fx.svc.Schedule(context.Background(), "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, &model.DayStats{Total: 3, Received: 1, Cancelled: 1, Pending: 1}, stats)
}

func TestAvailableDatesSkipHolidays(t *testing.T) {
	fx := newFixture(t)
	fx.svc.holidays = map[string]struct{}{"2025-06-11": {}}

	dates := fx.svc.AvailableDates()
	assert.Len(t, dates, 30)
	assert.Equal(t, "2025-06-10", dates[0])
	assert.NotContains(t, dates, "2025-06-11")
}

func TestGetHidesForeignAppointmentsFromPatients(t *testing.T) {
	fx := newFixture(t)
	appt := fx.book(t, fx.patient, "2025-06-11", "10:00")

	stranger := model.Actor{UserID: uuid.New(), Email: "x@example.com"}
	_, err := fx.svc.Get(context.Background(), stranger, appt.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))

	got, err := fx.svc.Get(context.Background(), fx.admin, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
}
