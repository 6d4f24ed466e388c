package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/security"
)

// LoginResult bundles the issued token with the authenticated user.
type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type Service struct {
	users  repository.UserRepository
	hasher security.PasswordHasher
	tokens *auth.TokenService
	log    *logger.Logger
}

func NewService(users repository.UserRepository, hasher security.PasswordHasher, tokens *auth.TokenService, log *logger.Logger) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, log: log}
}

// Register creates a patient account and signs it in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*LoginResult, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Validation("password does not meet requirements", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, errors.KindDuplicate) {
			return nil, errors.Duplicate("an account with this email already exists", err)
		}
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}

	s.log.Info("patient registered", "user_id", user.ID)
	return &LoginResult{Token: token, User: user}, nil
}

// Login verifies credentials and issues a token. Wrong email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return nil, errors.Permission("invalid credentials", nil)
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Permission("invalid credentials", nil)
	}

	token, err := s.tokens.Generate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}
