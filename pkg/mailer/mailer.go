// Package mailer sends transactional email over SMTP. The defaults target
// Mailtrap (smtp.mailtrap.io:2525), which is useful for development and
// testing environments.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the SMTP settings.
type Config struct {
	Host   string
	Port   string
	User   string
	Pass   string
	Sender string
}

// SMTPMailer sends mail through an authenticated SMTP server.
type SMTPMailer struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, errors.New("SMTP host and port must be provided")
	}
	if cfg.User == "" || cfg.Pass == "" {
		return nil, errors.New("SMTP username and password must be provided")
	}
	if cfg.Sender == "" {
		return nil, errors.New("sender email address cannot be empty")
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send delivers msg. The Content-Type is text/html when the body looks like
// HTML and text/plain otherwise.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("recipient email address cannot be empty")
	}
	if msg.Subject == "" {
		return errors.New("email subject cannot be empty")
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	if err := m.sendMail(addr, auth, m.cfg.Sender, []string{msg.To}, buildMessage(m.cfg.Sender, msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(sender string, msg Message) []byte {
	contentType := "text/plain; charset=UTF-8"
	lower := strings.ToLower(msg.Body)
	if strings.Contains(lower, "<html>") || strings.Contains(lower, "<p>") {
		contentType = "text/html; charset=UTF-8"
	}
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: %s\r\n"+
		"\r\n"+
		"%s\r\n", msg.To, sender, msg.Subject, contentType, msg.Body))
}

// LogMailer logs messages instead of sending them. It is used when SMTP is
// not configured.
type LogMailer struct {
	Logger *zap.Logger
}

// Send logs the recipient and subject. The body is logged at debug level so
// verification links stay reachable in development.
func (l LogMailer) Send(_ context.Context, msg Message) error {
	l.Logger.Info("Mail delivery disabled, message dropped",
		zap.String("to", msg.To), zap.String("subject", msg.Subject))
	l.Logger.Debug("Dropped message body", zap.String("to", msg.To), zap.String("body", msg.Body))
	return nil
}
