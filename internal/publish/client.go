// Package publish forwards session telemetry to an MQTT broker.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/srg/photonctl/pkg/config"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Client is a paho MQTT client that tracks its connection state.
type Client struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	logger    *logrus.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ Publisher = (*Client)(nil)

// NewClient prepares a client for cfg.Broker. No connection is made until Connect.
func NewClient(cfg config.MQTTConfig, clientID string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ClientID != "" {
		clientID = cfg.ClientID
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.WithField("broker", cfg.Broker).Info("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.WithField("error", err).Warn("MQTT connection lost")
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Publish sends payload and waits for the broker to accept it.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect closes the connection. It is safe to call more than once.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
