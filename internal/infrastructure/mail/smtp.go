package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/verimail/verimail/internal/core/ports"
)

// Config captures the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier implements ports.Notifier over SMTP.
type SMTPNotifier struct {
	client *gomail.Client
	from   string
}

// NewSMTPNotifier builds the SMTP client. Delivery happens per message in
// Send; no connection is held open between sends.
func NewSMTPNotifier(cfg Config) (*SMTPNotifier, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: cfg.From}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, m ports.Mail) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.TextBody)
	msg.AddAlternativeString(gomail.TypeTextHTML, m.HTMLBody)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
