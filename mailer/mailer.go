// Package mailer delivers activation and password reset codes over
// SMTP. Delivery is optional; the kernel works without a mailer and
// callers may deliver codes through any channel they like.
package mailer

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Mailer sends kernel mail through one SMTP account.
type Mailer struct {
	config *mailerConfig
	dialer *gomail.Dialer
}

// Email represents one outgoing message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// NewMailer creates a Mailer from SMTP_* environment variables.
func NewMailer(logger *zerolog.Logger) *Mailer {
	cfg := newMailerConfig(logger)

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate mailer configuration")
	}

	dialer := gomail.NewDialer(
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
	)

	return &Mailer{
		config: cfg,
		dialer: dialer,
	}
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}

	return m.dialer.DialAndSend(msg)
}

// SendActivationCode mails a freshly issued account activation code.
func (m *Mailer) SendActivationCode(to, code string, ttl time.Duration) error {
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>Use the code below to activate your account:</p>

		<p><strong>%s</strong></p>

		<p>The code expires in %s.</p>
		<p>If you did not create an account, you can safely ignore this email.</p>
	`, code, ttl)

	return m.Send(Email{
		To:       []string{to},
		Subject:  "Activate your account",
		HTMLBody: htmlBody,
	})
}

// SendReminderCode mails a password reset code.
func (m *Mailer) SendReminderCode(to, code string, ttl time.Duration) error {
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>If you made this request, use the code below to choose a new password:</p>

		<p><strong>%s</strong></p>

		<p>The code expires in %s for your security.</p>
		<p>If you did not request a password reset, you can safely ignore this email.</p>
	`, code, ttl)

	return m.Send(Email{
		To:       []string{to},
		Subject:  "Password Reset Request",
		HTMLBody: htmlBody,
	})
}

// mailerConfig holds SMTP configuration for sending emails.
type mailerConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

func newMailerConfig(logger *zerolog.Logger) *mailerConfig {
	cfg, err := env.ParseAs[mailerConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	return &cfg
}

func (c *mailerConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return nil
}
