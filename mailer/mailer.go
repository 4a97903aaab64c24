// Package mailer relays contact-form submissions to the site owner over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when the relay has no credentials.
var ErrNotConfigured = errors.New("mailer: smtp relay not configured")

// ContactMessage is one validated contact-form submission.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Sender delivers contact messages and returns the message ID.
type Sender interface {
	Send(ctx context.Context, msg ContactMessage) (string, error)
}

// Config holds the SMTP relay settings. Port 465 implies implicit TLS.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // both sender and recipient
	Timeout  time.Duration
}

// SMTPSender is a Sender backed by an SMTP relay.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, contact ContactMessage) (string, error) {
	if s.cfg.Host == "" || s.cfg.Password == "" {
		return "", ErrNotConfigured
	}

	msg, err := BuildMessage(s.cfg.From, contact)
	if err != nil {
		return "", err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send contact mail: %w", err)
	}

	id := msg.GetMessageID()
	log.Info().Str("message_id", id).Str("reply_to", contact.Email).Msg("contact mail sent")
	return id, nil
}

// BuildMessage composes the mail sent for a contact submission: from and to the
// site address, replying to the visitor.
func BuildMessage(from string, contact ContactMessage) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat("Portfolio Contact", from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(from); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	if err := msg.ReplyTo(contact.Email); err != nil {
		return nil, fmt.Errorf("invalid reply-to address: %w", err)
	}
	msg.Subject("Portfolio Contact: " + contact.Subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, Body(contact))
	return msg, nil
}

// Body renders the plain-text mail body.
func Body(contact ContactMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", contact.Name)
	fmt.Fprintf(&b, "Email: %s\n", contact.Email)
	fmt.Fprintf(&b, "Subject: %s\n", contact.Subject)
	b.WriteString("\nMessage:\n")
	b.WriteString(contact.Message)
	b.WriteString("\n")
	return b.String()
}
