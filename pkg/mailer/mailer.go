package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/config"
)

// Email is a single outbound message with both HTML and text bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email through the configured collaborator.
type Sender interface {
	Send(email Email) error
}

// SMTPSender sends mail over plain SMTP (Mailpit in development, a relay in
// production).
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender constructs an SMTP-backed sender.
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send delivers a multipart/alternative message.
func (s *SMTPSender) Send(email Email) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := buildMessage(s.cfg.From, email)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{email.To}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Debug("email sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

const boundary = "mime-boundary-centro-ludico"

func buildMessage(from string, email Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + email.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(email.TextBody + "\r\n")

	if email.HTMLBody != "" {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(email.HTMLBody + "\r\n")
	}

	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
