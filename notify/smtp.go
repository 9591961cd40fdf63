package notify

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"listing-watch/utils"
)

// SMTPConfig holds the mail server settings. Port 465 uses implicit TLS.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// dialer is the part of gomail.Dialer SMTPNotifier uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends digests as HTML email from the configured account.
type SMTPNotifier struct {
	from   string
	dialer dialer
	logger *utils.Logger
}

// NewSMTPNotifier creates a notifier logging in as cfg.User.
func NewSMTPNotifier(cfg SMTPConfig, logger *utils.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		from:   cfg.User,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		logger: logger,
	}
}

// Deliver sends msg and returns a *DeliveryError on failure.
func (n *SMTPNotifier) Deliver(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return &DeliveryError{Err: errors.New("no recipient configured")}
	}
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Recipient: msg.Recipient, Err: err}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	if err := n.dialer.DialAndSend(m); err != nil {
		return &DeliveryError{Recipient: msg.Recipient, Err: err}
	}

	n.logger.Info("[notify] ✓ Email sent to %s: %s", msg.Recipient, msg.Subject)
	return nil
}
