// Package mailer sends the submission report emails.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// Config holds SMTP connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends HTML email over SMTP
type Mailer struct {
	cfg    Config
	logger ectologger.Logger
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg Config, logger ectologger.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		logger: logger,
	}
}

// SendEmail sends one HTML message to the given recipients. The context is
// accepted for tracing only, net/smtp does not support cancellation.
func (m *Mailer) SendEmail(ctx context.Context, to []string, subject, html string) error {
	_, span := tracing.StartSpan(ctx, "mailer.Mailer.SendEmail")
	defer span.End()

	if len(to) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, to, []byte(msg.String())); err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"recipients": len(to),
		}).Error("Failed to send email")
		return err
	}

	return nil
}
