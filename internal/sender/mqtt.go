package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
)

const mqttDisconnectQuiesce = 250 // milliseconds

// MQTTSender publishes every batch as JSON on <topic_prefix>/<check>.
type MQTTSender struct {
	log     *slog.Logger
	client  pahomqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

func NewMQTTSender(log *slog.Logger, cfg *config.MQTTConfig) (*MQTTSender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("mqtt connection lost", sl.Err(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTSender{
		log:     log,
		client:  client,
		prefix:  strings.TrimRight(cfg.TopicPrefix, "/"),
		qos:     byte(cfg.QoS),
		timeout: timeout,
	}, nil
}

func (s *MQTTSender) Topic(check string) string {
	if s.prefix == "" {
		return check
	}
	return s.prefix + "/" + check
}

func (s *MQTTSender) Send(ctx context.Context, batch *model.Batch) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := batch.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	token := s.client.Publish(s.Topic(batch.Check), s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("mqtt publish: timeout after %v", s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}

	return nil
}

func (s *MQTTSender) Health(ctx context.Context) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

func (s *MQTTSender) Close() error {
	s.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}
