package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
)

const pushTTL = 60 // seconds

// PushPayload is the JSON the service worker receives.
type PushPayload struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Status     string   `json:"status"`
}

// WebPushProvider sends the event to every stored browser subscription.
// Subscriptions the push service reports as gone (404, 410) are deleted.
type WebPushProvider struct {
	cfg    config.WebPushConfig
	tmpl   *Templates
	store  database.SubscriptionStore
	client webpush.HTTPClient
	log    *zap.Logger
}

func NewWebPushProvider(cfg config.WebPushConfig, tmpl *Templates, store database.SubscriptionStore, log *zap.Logger) *WebPushProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebPushProvider{cfg: cfg, tmpl: tmpl, store: store, client: http.DefaultClient, log: log}
}

// WithHTTPClient replaces the client used to reach push services.
func (p *WebPushProvider) WithHTTPClient(c webpush.HTTPClient) *WebPushProvider {
	p.client = c
	return p
}

func (p *WebPushProvider) GetName() string { return "webpush" }

func (p *WebPushProvider) IsEnabled() bool { return p.cfg.Enabled() }

func (p *WebPushProvider) ValidateConfig() error {
	if !p.cfg.Enabled() {
		return ErrDisabled
	}
	if p.store == nil {
		return errors.New("subscription store is required")
	}
	if p.tmpl == nil {
		return errors.New("push templates are required")
	}
	return nil
}

// Payload renders the push message for e.
func (p *WebPushProvider) Payload(e *Event) ([]byte, error) {
	title, err := p.tmpl.Title(e)
	if err != nil {
		return nil, err
	}
	body, err := p.tmpl.Body(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(PushPayload{
		Title:      title,
		Body:       body,
		Type:       e.AlertType,
		Confidence: e.Confidence,
		Status:     e.Status,
	})
}

// Send pushes to all subscriptions concurrently. Individual failures are
// logged; only a failure to read the subscriptions is returned.
func (p *WebPushProvider) Send(ctx context.Context, e *Event) error {
	subs, err := p.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}
	payload, err := p.Payload(e)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.push(ctx, sub, payload); err != nil {
				p.log.Warn("web push failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
		}()
	}
	wg.Wait()
	return nil
}

func (p *WebPushProvider) push(ctx context.Context, sub database.PushSubscription, payload []byte) error {
	var s webpush.Subscription
	if err := json.Unmarshal([]byte(sub.Payload), &s); err != nil {
		return fmt.Errorf("stored subscription is not valid JSON: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &s, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.cfg.Subscriber,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
		TTL:             pushTTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if err := p.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			return fmt.Errorf("failed to delete expired subscription: %w", err)
		}
		p.log.Info("removed expired push subscription", zap.String("endpoint", sub.Endpoint))
		return nil
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service responded %d", resp.StatusCode)
	}
	return nil
}
