package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrProvider forwards events to any service shoutrrr supports
// (Telegram, Discord, Slack, ntfy, Gotify, generic webhooks ...).
type ShoutrrrProvider struct {
	urls    []string
	tmpl    *Templates
	timeout time.Duration
	sender  *router.ServiceRouter
}

func NewShoutrrrProvider(urls []string, tmpl *Templates, timeout time.Duration) *ShoutrrrProvider {
	return &ShoutrrrProvider{urls: urls, tmpl: tmpl, timeout: timeout}
}

func (p *ShoutrrrProvider) GetName() string { return "shoutrrr" }

func (p *ShoutrrrProvider) IsEnabled() bool { return len(p.urls) > 0 }

// ValidateConfig parses the URLs and builds the sender.
func (p *ShoutrrrProvider) ValidateConfig() error {
	if len(p.urls) == 0 {
		return ErrDisabled
	}
	if p.tmpl == nil {
		return errors.New("templates are required")
	}
	sender, err := shoutrrr.CreateSender(p.urls...)
	if err != nil {
		return fmt.Errorf("invalid notification url: %w", err)
	}
	if p.timeout > 0 {
		sender.Timeout = p.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	p.sender = sender
	return nil
}

func (p *ShoutrrrProvider) Send(ctx context.Context, e *Event) error {
	if p.sender == nil {
		return errors.New("shoutrrr sender not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	title, err := p.tmpl.Title(e)
	if err != nil {
		return err
	}
	body, err := p.tmpl.Body(e)
	if err != nil {
		return err
	}

	params := &stypes.Params{}
	params.SetTitle(title)

	var msgs []string
	for _, sendErr := range p.sender.Send(body, params) {
		if sendErr != nil {
			msgs = append(msgs, sendErr.Error())
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("shoutrrr delivery failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
