package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// Sender delivers transactional mail. Delivery is always best-effort:
// a failed email never fails the booking that triggered it.
type Sender interface {
	SendBookingConfirmation(user *model.User, appt *model.Appointment) error
	SendWelcome(user *model.User, tempPassword string) error
}

type service struct {
	dialer *gomail.Dialer
	from   string
	log    *logger.Logger
}

// NewService builds an SMTP sender, or a no-op one when SMTP is disabled.
func NewService(cfg config.SMTPConfig, log *logger.Logger) Sender {
	if !cfg.Enabled {
		return &noopSender{}
	}
	return &service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

func (s *service) SendBookingConfirmation(user *model.User, appt *model.Appointment) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Your appointment is confirmed")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour appointment is confirmed for %s at %s.\nYour confirmation code is %s. Show it (or your QR code) at the front desk.\n",
		user.DisplayName(), appt.Date, appt.Time, appt.Code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}

func (s *service) SendWelcome(user *model.User, tempPassword string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Your patient account")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nAn account was created for you. Sign in with this temporary password and change it:\n\n%s\n",
		user.DisplayName(), tempPassword))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

type noopSender struct{}

func (noopSender) SendBookingConfirmation(*model.User, *model.Appointment) error { return nil }
func (noopSender) SendWelcome(*model.User, string) error                         { return nil }
