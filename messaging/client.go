// Package messaging publishes controller events to MQTT or Kafka.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"

	"warehouse/config"
)

var ErrNotConnected = errors.New("messaging: not connected")

// Publisher is what the outbox drainer needs from a client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

// Client is the unified messaging client. Backend "none" accepts and
// discards every message so the outbox still drains.
type Client struct {
	mu       sync.RWMutex
	cfg      config.MessagingConfig
	mqttConn mqtt.Client
	kafkaW   *kafkago.Writer
	open     bool
}

func NewClient(cfg config.MessagingConfig) *Client {
	return &Client{cfg: cfg}
}

// Backend names the configured transport.
func (c *Client) Backend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Backend
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Backend {
	case "", "none":
		c.open = true
		return nil
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		return c.connectKafka()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.cfg.Backend)
	}
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	c.open = true
	return nil
}

func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	c.kafkaW = &kafkago.Writer{
		Addr:                   kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	c.open = true
	return nil
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.open {
		return ErrNotConnected
	}
	switch c.cfg.Backend {
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt: %w", ErrNotConnected)
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		select {
		case <-token.Done():
			return token.Error()
		case <-ctx.Done():
			return ctx.Err()
		}
	case "kafka":
		return c.kafkaW.WriteMessages(ctx, kafkago.Message{Topic: topic, Value: payload})
	default:
		return nil
	}
}

// PublishEnvelope encodes and publishes a protocol envelope to the given topic.
func (c *Client) PublishEnvelope(ctx context.Context, topic string, env interface{ Encode() ([]byte, error) }) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(ctx, topic, data)
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.cfg.Backend {
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	default:
		return c.open
	}
}

// Reconfigure closes the current connection and connects with cfg.
func (c *Client) Reconfigure(cfg config.MessagingConfig) error {
	c.Close()
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return c.Connect()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	c.open = false
}
