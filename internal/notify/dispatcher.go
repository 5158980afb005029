package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rehanbawakhan/vdetection/internal/facematch"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher fans an event out to every enabled provider.
// Background providers are not awaited; Wait blocks until they finish.
type Dispatcher struct {
	providers []Provider
	timeout   time.Duration
	cooldown  *cache.Cache
	log       *zap.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

type Option func(*Dispatcher)

// WithTimeout bounds each provider's Send.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithCooldown suppresses repeated events for the same name and alert type
// within d. Zero disables it.
func WithCooldown(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.cooldown = cache.New(d, 2*d)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(disp *Dispatcher) { disp.metrics = m }
}

// NewDispatcher keeps only the providers that are enabled and pass validation.
func NewDispatcher(log *zap.Logger, providers []Provider, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{timeout: defaultSendTimeout, log: log}
	for _, opt := range opts {
		opt(d)
	}
	for _, p := range providers {
		if p == nil || !p.IsEnabled() {
			continue
		}
		if err := p.ValidateConfig(); err != nil {
			log.Warn("notification provider disabled", zap.String("provider", p.GetName()), zap.Error(err))
			continue
		}
		d.providers = append(d.providers, p)
	}
	return d
}

// Providers returns the names of the active providers.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.GetName())
	}
	return names
}

// Dispatch delivers e. It returns false when the event was suppressed by the cooldown.
// Delivery errors are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, e *Event) bool {
	if d.suppressed(e) {
		d.log.Debug("notification suppressed by cooldown",
			zap.String("name", e.Name), zap.String("alert_type", e.AlertType))
		for _, p := range d.providers {
			d.metrics.RecordNotification(p.GetName(), "skipped", 0)
		}
		return false
	}

	var g errgroup.Group
	for _, p := range d.providers {
		if isBackground(p) {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.send(context.WithoutCancel(ctx), p, e)
			}()
			continue
		}
		g.Go(func() error {
			d.send(ctx, p, e)
			return nil
		})
	}
	_ = g.Wait()
	return true
}

// Wait blocks until background deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, p Provider, e *Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := p.Send(ctx, e)
	elapsed := time.Since(start)
	if err != nil {
		d.metrics.RecordNotification(p.GetName(), "error", elapsed)
		d.log.Error("notification failed",
			zap.String("provider", p.GetName()),
			zap.String("event_id", e.ID),
			zap.String("name", e.Name),
			zap.Error(err))
		return
	}
	d.metrics.RecordNotification(p.GetName(), "success", elapsed)
	d.log.Debug("notification sent",
		zap.String("provider", p.GetName()),
		zap.String("event_id", e.ID),
		zap.Duration("duration", elapsed))
}

func (d *Dispatcher) suppressed(e *Event) bool {
	if d.cooldown == nil {
		return false
	}
	key := facematch.NormalizeName(e.Name) + "|" + strings.ToLower(e.AlertType)
	return d.cooldown.Add(key, struct{}{}, cache.DefaultExpiration) != nil
}
