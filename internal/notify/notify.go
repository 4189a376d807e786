// Package notify tells listeners (thermostats, dashboards) that the
// schedule set changed.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"hvacsched/internal/config"
)

// Change is published after every committed action.
type Change struct {
	Action      string   `json:"action"`
	ScheduleIDs []string `json:"schedule_ids"`
	At          string   `json:"at"`
	Total       int      `json:"total"`
}

type Notifier interface {
	Publish(ctx context.Context, c Change) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, c Change) error

func (f Func) Publish(ctx context.Context, c Change) error { return f(ctx, c) }

const publishTimeout = 5 * time.Second

// MQTT publishes changes as retained QoS 1 JSON messages on one topic, so a
// device that connects later still sees the latest change.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// Connect dials the broker described by cfg.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("notify: mqtt broker is empty")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("notify: mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("notify: mqtt connect to %s: %w", cfg.Broker, err)
	}
	return NewMQTT(client, cfg.Topic, logger), nil
}

func NewMQTT(client mqtt.Client, topic string, logger *zap.Logger) *MQTT {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTT{client: client, topic: topic, logger: logger}
}

func (m *MQTT) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("notify: publish to %s timed out", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: publish to %s: %w", m.topic, err)
	}
	m.logger.Debug("schedule change published", zap.String("topic", m.topic), zap.String("action", c.Action))
	return nil
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
