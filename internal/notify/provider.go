package notify

import (
	"context"
	"errors"
)

// ErrDisabled is returned by providers that lack configuration.
var ErrDisabled = errors.New("provider disabled")

// Provider delivers events to one channel.
type Provider interface {
	// GetName returns a short name used in logs and metrics.
	GetName() string
	// ValidateConfig checks that the provider can be used.
	ValidateConfig() error
	// Send delivers the event.
	Send(ctx context.Context, e *Event) error
	// IsEnabled reports whether the provider is configured.
	IsEnabled() bool
}

// Background marks providers whose delivery must not hold up the request
// that raised the alert.
type Background interface {
	Background() bool
}

func isBackground(p Provider) bool {
	b, ok := p.(Background)
	return ok && b.Background()
}
