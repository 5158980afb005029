package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
	mqttQoS            = 1
)

// MQTTMessage is the JSON published for each event.
type MQTTMessage struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AlertType  string   `json:"alertType"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
	Timestamp  string   `json:"timestamp"`
	HasImage   bool     `json:"hasImage"`
}

// publisher is the part of mqtt.Client the provider uses.
type publisher interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTProvider publishes events to a broker topic. It connects lazily on
// the first event and relies on paho's auto-reconnect afterwards.
type MQTTProvider struct {
	cfg config.MQTTConfig
	log *zap.Logger

	mu     sync.Mutex
	client publisher
}

func NewMQTTProvider(cfg config.MQTTConfig, log *zap.Logger) *MQTTProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTTProvider{cfg: cfg, log: log}
}

func (p *MQTTProvider) GetName() string { return "mqtt" }

func (p *MQTTProvider) IsEnabled() bool { return p.cfg.Broker != "" }

func (p *MQTTProvider) ValidateConfig() error {
	if p.cfg.Broker == "" {
		return ErrDisabled
	}
	if p.cfg.Topic == "" {
		return errors.New("mqtt topic is required")
	}
	return nil
}

func (p *MQTTProvider) Send(ctx context.Context, e *Event) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(MQTTMessage{
		ID:         e.ID,
		Name:       e.Name,
		AlertType:  e.AlertType,
		Status:     e.Status,
		Confidence: e.Confidence,
		Timestamp:  e.Timestamp(),
		HasImage:   e.Image != "",
	})
	if err != nil {
		return fmt.Errorf("failed to encode mqtt message: %w", err)
	}

	token := client.Publish(p.cfg.Topic, mqttQoS, false, payload)
	if err := waitToken(ctx, token, mqttPublishTimeout); err != nil {
		return fmt.Errorf("mqtt publish failed: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}

func (p *MQTTProvider) connect(ctx context.Context) (publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		return p.client, nil
	}
	if p.client == nil {
		p.client = mqtt.NewClient(p.options())
	}

	if err := waitToken(ctx, p.client.Connect(), mqttConnectTimeout); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s failed: %w", p.cfg.Broker, err)
	}
	return p.client, nil
}

func (p *MQTTProvider) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info("connected to mqtt broker", zap.String("broker", p.cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("mqtt connection lost", zap.String("broker", p.cfg.Broker), zap.Error(err))
	})
	return opts
}

// waitToken waits for a paho token, giving up on timeout or context cancellation.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timed out")
	}
}
