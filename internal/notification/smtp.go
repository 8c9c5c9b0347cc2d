package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/stellar-social/stellar/internal/config"
)

// SMTPNotifier sends codes by email through an SMTP relay.
type SMTPNotifier struct {
	client  *mail.Client
	from    string
	appName string
	timeout time.Duration
}

// NewSMTPNotifier configures an SMTP client. Authentication is only enabled
// when a username is set.
func NewSMTPNotifier(cfg config.MailConfig, appName string) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{client: client, from: cfg.From, appName: appName, timeout: cfg.Timeout}, nil
}

// Send renders the message and delivers it. The call is bounded by the
// configured mail timeout.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	msg, err := buildMessage(n.appName, n.from, message)
	if err != nil {
		return err
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", message.Kind, err)
	}
	return nil
}

func buildMessage(appName, from string, message Message) (*mail.Msg, error) {
	rendered, err := Render(appName, message)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(appName, from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(message.Destination); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(rendered.Subject)
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, rendered.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, rendered.HTML)
	return msg, nil
}
