package services

import (
	"fmt"

	"kindernest_go/config"

	"gopkg.in/gomail.v2"
)

// MailerService sends transactional mail (generated account credentials).
type MailerService struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailerService builds a mailer from SMTP config. Without an SMTP host
// the mailer is disabled and sends become no-ops with an error.
func NewMailerService() *MailerService {
	cfg := config.AppConfig
	if cfg.SMTPHost == "" {
		return &MailerService{from: cfg.MailFrom}
	}
	return &MailerService{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.MailFrom,
	}
}

// Enabled reports whether SMTP is configured.
func (m *MailerService) Enabled() bool {
	return m.dialer != nil
}

// SendCredentials mails a freshly generated username/password pair to a
// parent after bulk account import.
func (m *MailerService) SendCredentials(to, parentName, username, password string) error {
	if m.dialer == nil {
		return fmt.Errorf("SMTP not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your KinderNest parent account")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Dear %s,\n\nYour parent account has been created.\n\nUsername: %s\nPassword: %s\n\nPlease sign in and change your password.\n",
		parentName, username, password,
	))

	return m.dialer.DialAndSend(msg)
}
