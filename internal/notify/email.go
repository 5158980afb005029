package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/snapshot"
)

// EmailProvider sends one message per event over SMTP, attaching the snapshot.
// Port 465 uses implicit TLS, other ports STARTTLS when offered.
type EmailProvider struct {
	cfg  config.SMTPConfig
	tmpl *Templates
	dial func(ctx context.Context, msg *mail.Msg) error
}

func NewEmailProvider(cfg config.SMTPConfig, tmpl *Templates) *EmailProvider {
	p := &EmailProvider{cfg: cfg, tmpl: tmpl}
	p.dial = p.dialAndSend
	return p
}

func (p *EmailProvider) GetName() string { return "email" }

func (p *EmailProvider) IsEnabled() bool { return p.cfg.Enabled }

// Background reports true: email is fire-and-forget.
func (p *EmailProvider) Background() bool { return true }

func (p *EmailProvider) ValidateConfig() error {
	if !p.cfg.Enabled {
		return ErrDisabled
	}
	if p.cfg.Host == "" || p.cfg.User == "" {
		return errors.New("smtp host and user are required")
	}
	if p.cfg.To == "" {
		return errors.New("alert recipient is required")
	}
	if p.tmpl == nil {
		return errors.New("email templates are required")
	}
	return nil
}

func (p *EmailProvider) Send(ctx context.Context, e *Event) error {
	msg, err := p.Message(e)
	if err != nil {
		return err
	}
	return p.dial(ctx, msg)
}

// Message builds the mail for e without sending it.
func (p *EmailProvider) Message(e *Event) (*mail.Msg, error) {
	subject, err := p.tmpl.Subject(e)
	if err != nil {
		return nil, err
	}
	body, err := p.tmpl.Body(e)
	if err != nil {
		return nil, err
	}

	from := p.cfg.From
	if from == "" {
		from = p.cfg.User
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(p.tmpl.From(), from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(splitRecipients(p.cfg.To)...); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", p.cfg.To, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)

	// A snapshot that is not a data URL is left out; the alert text still goes.
	if img, err := snapshot.Parse(e.Image); err == nil {
		name := fmt.Sprintf("detection-%d%s", e.Time.UnixMilli(), img.Extension())
		if err := msg.AttachReader(name, bytes.NewReader(img.Data)); err != nil {
			return nil, fmt.Errorf("failed to attach snapshot: %w", err)
		}
	}
	return msg, nil
}

func (p *EmailProvider) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(p.cfg.User),
		mail.WithPassword(p.cfg.Pass),
	}
	if p.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	opts = append(opts, mail.WithPort(p.cfg.Port))

	client, err := mail.NewClient(p.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func splitRecipients(to string) []string {
	var out []string
	for part := range strings.SplitSeq(to, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
