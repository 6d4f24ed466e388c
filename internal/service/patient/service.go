package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/security"
)

type Service struct {
	users  repository.UserRepository
	hasher security.PasswordHasher
	mailer email.Sender
	log    *logger.Logger
}

func NewService(users repository.UserRepository, hasher security.PasswordHasher, mailer email.Sender, log *logger.Logger) *Service {
	return &Service{users: users, hasher: hasher, mailer: mailer, log: log}
}

// Create provisions a patient account from the front desk. Keyed on
// email: an existing account gets its profile refreshed instead of
// failing, so the desk can re-run the form safely.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreatePatientRequest) (*model.CreatePatientResponse, error) {
	if !actor.IsAdmin {
		return nil, errors.Permission("only staff can create patient accounts", nil)
	}

	tempPassword, err := security.TempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        req.Email,
		FullName:     &req.Name,
		Phone:        req.Phone,
		PasswordHash: hash,
	}
	id, created, err := s.users.Upsert(ctx, user)
	if err != nil {
		return nil, err
	}

	resp := &model.CreatePatientResponse{Success: true, UserID: id}
	if !created {
		resp.Note = "an account with this email already existed; its profile was updated"
		s.log.Info("patient profile refreshed", "user_id", id)
		return resp, nil
	}

	user.ID = id
	go func() {
		if err := s.mailer.SendWelcome(user, tempPassword); err != nil {
			s.log.Error(err, "welcome email failed", "user_id", id)
		}
	}()

	s.log.Info("patient account provisioned", "user_id", id)
	return resp, nil
}

// List returns the patient directory, optionally filtered by a name or
// email fragment.
func (s *Service) List(ctx context.Context, actor model.Actor, search string) ([]model.PatientSummary, error) {
	if !actor.IsAdmin {
		return nil, errors.Permission("only staff can browse patients", nil)
	}
	return s.users.ListPatients(ctx, search)
}

// Profile returns the actor's own account.
func (s *Service) Profile(ctx context.Context, actor model.Actor) (*model.User, error) {
	return s.users.GetByID(ctx, actor.UserID)
}

// UpdateProfile lets a patient maintain their own contact details.
func (s *Service) UpdateProfile(ctx context.Context, actor model.Actor, req *model.UpdateProfileRequest) (*model.User, error) {
	if err := s.users.UpdateProfile(ctx, actor.UserID, req.FullName, req.Phone); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, actor.UserID)
}
