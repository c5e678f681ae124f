// Package notify emails operators about qualification events that need a
// human decision. Delivery failures are logged and never block the
// conversation flow.
package notify

import (
	"context"
	"fmt"
	"net"
	"time"

	"leadbot_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Mailer delivers one operator alert.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// SMTPMailer delivers alerts over a direct SMTP connection via go-mail.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
}

func NewSMTPMailer(cfg config.NotifyConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
		from:     cfg.GetNotifyFromAddress(),
		to:       cfg.GetNotifyToAddresses(),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	if len(m.to) == 0 {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
