// Package mailer consumes account email events and delivers them over SMTP.
package mailer

import (
	"context"
	"fmt"

	mail "github.com/go-mail/mail"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// Sender delivers messages through a specific channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages over SMTP.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPSender creates an SMTP sender. Username and password may be empty
// for unauthenticated relays such as a local mailcatcher.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: mail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Name returns the channel name.
func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send delivers the message. The underlying dialer has no context support, so
// cancellation is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	return nil
}
