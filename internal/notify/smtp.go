package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// AddressResolver maps an opaque user id to a deliverable email address.
// Identity lives outside the engine, so the resolver is injected.
type AddressResolver func(userID string) (string, bool)

// SMTPSink emails notifications to their recipients.
type SMTPSink struct {
	config     SMTPConfig
	server     string
	auth       smtp.Auth
	addressFor AddressResolver
	send       func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSink(config SMTPConfig, addressFor AddressResolver) *SMTPSink {
	return &SMTPSink{
		config:     config,
		server:     config.Host + ":" + config.Port,
		auth:       smtp.PlainAuth("", config.Username, config.Password, config.Host),
		addressFor: addressFor,
		send:       smtp.SendMail,
	}
}

// IsConfigured returns true if the sink can actually deliver mail.
func (s *SMTPSink) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *SMTPSink) Notify(_ context.Context, recipientID string, n Notification) error {
	if !s.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}

	address, ok := s.addressFor(recipientID)
	if !ok {
		return fmt.Errorf("no address for recipient %s", recipientID)
	}

	subject := "Activity on your draft"
	if n.Type != "" {
		subject = fmt.Sprintf("Inkwell: %s", strings.ReplaceAll(n.Type, "-", " "))
	}

	msg := s.buildMessage([]string{address}, subject, n.Summary)
	return s.send(s.server, s.auth, s.config.From, []string{address}, msg)
}

func (s *SMTPSink) buildMessage(to []string, subject, body string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	return []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))
}
