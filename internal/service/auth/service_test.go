package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/security"
)

type fakeUserRepo struct {
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*model.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return errors.Duplicate("duplicate email", nil)
	}
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func (f *fakeUserRepo) Upsert(context.Context, *model.User) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (f *fakeUserRepo) UpdateProfile(context.Context, uuid.UUID, *string, *string) error {
	return nil
}

func (f *fakeUserRepo) ListPatients(context.Context, string) ([]model.PatientSummary, error) {
	return nil, nil
}

func (f *fakeUserRepo) CountPatients(context.Context) (int, error) { return 0, nil }

func newService(repo *fakeUserRepo) *Service {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewService(repo, security.NewBcryptHasher(4), tokens, logger.NewLogger(nil))
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	svc := newService(newFakeUserRepo())

	got, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "ana@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Token)
	assert.False(t, got.User.IsAdmin)

	claims, err := auth.NewTokenService("test-secret", time.Hour).Validate(got.Token)
	require.NoError(t, err)
	assert.Equal(t, got.User.ID, claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newService(repo)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Email: "ana@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &model.RegisterRequest{Email: "ana@example.com", Password: "hunter2hunter2"})
	assert.True(t, errors.Is(err, errors.KindDuplicate))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Email: "ana@example.com", Password: "short"})
	assert.True(t, errors.Is(err, errors.KindValidation))
}

func TestLoginRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newService(repo)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Email: "ana@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	got, err := svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Token)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newService(repo)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Email: "ana@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(context.Background(), &model.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	_, unknownEmail := svc.Login(context.Background(), &model.LoginRequest{Email: "ghost@example.com", Password: "nope-nope"})

	assert.True(t, errors.Is(wrongPassword, errors.KindPermission))
	assert.True(t, errors.Is(unknownEmail, errors.KindPermission))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}
