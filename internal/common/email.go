package common

import (
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(to, subject, html string) error
}

// InMemoryEmail provides a test-friendly email sender that records messages.
type InMemoryEmail struct {
	Outbox []Email
}

// Email represents a single email message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender implements EmailSender without performing any action.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }

// LogEmailSender writes messages to the log instead of delivering them.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send implements EmailSender.
func (l LogEmailSender) Send(to, subject, html string) error {
	l.Logger.Info().Str("to", to).Str("subject", subject).Int("bytes", len(html)).Msg("email not sent: smtp not configured")
	return nil
}

// SMTPSender delivers HTML mail through a plain SMTP relay, authenticating when credentials are set.
type SMTPSender struct {
	Addr     string
	From     string
	Username string
	Password string
}

// Send implements EmailSender.
func (s SMTPSender) Send(to, subject, html string) error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("smtp: address not configured")
	}
	var auth smtp.Auth
	if s.Username != "" {
		host, _, err := net.SplitHostPort(s.Addr)
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	return smtp.SendMail(s.Addr, auth, s.From, []string{to}, buildMessage(s.From, to, subject, html))
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", headerValue(subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// headerValue folds every CR and LF run into a single space.
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}
