package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bbw200-gateway/internal/config"
	"bbw200-gateway/internal/display"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Client renders the display board to retained topics and listens for the
// cloud toggle:
//
//	<prefix>/temperature, <prefix>/humidity, <prefix>/status, <prefix>/cloud
//	<prefix>/cloud/set  (true|false|on|off|1|0)
type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	onToggle func(bool) error

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger, onToggle func(bool) error) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		onToggle: onToggle,
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscriptions are not kept across clean sessions, so subscribe on every
	// (re)connect.
	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		c.subscribeToggle(mc)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Topic joins the configured prefix and name.
func (c *Client) Topic(name string) string {
	return c.cfg.MQTTTopicPrefix + "/" + name
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally.
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
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// Render implements display.Renderer. It runs on the board goroutine, so it
// only hands the messages to paho; delivery is confirmed in the background.
func (c *Client) Render(s display.State) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	msgs := []struct {
		topic   string
		payload string
	}{
		{c.Topic("temperature"), s.Temperature},
		{c.Topic("humidity"), s.Humidity},
		{c.Topic("status"), s.Status},
		{c.Topic("cloud"), strconv.FormatBool(s.CloudEnabled)},
	}
	for _, m := range msgs {
		token := c.client.Publish(m.topic, 1, true, m.payload) // retained
		go c.awaitPublish(token, m.topic, m.payload)
	}
	return nil
}

func (c *Client) awaitPublish(token mqtt.Token, topic, payload string) {
	if !token.WaitTimeout(publishTimeout) {
		c.logger.Warn("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("published display channel", "topic", topic, "payload", payload)
}

func (c *Client) subscribeToggle(mc mqtt.Client) {
	topic := c.Topic("cloud/set")
	token := mc.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleToggle(msg.Topic(), msg.Payload())
	})
	// The connect handler runs on paho's goroutine; wait in the background.
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.logger.Warn("mqtt subscribe timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
			return
		}
		c.logger.Info("subscribed to mqtt topic", "topic", topic)
	}()
}

func (c *Client) handleToggle(topic string, payload []byte) {
	enabled, err := ParseToggle(payload)
	if err != nil {
		c.logger.Warn("ignoring cloud toggle message", "topic", topic, "error", err)
		return
	}
	if c.onToggle == nil {
		return
	}
	if err := c.onToggle(enabled); err != nil {
		c.logger.Warn("cloud toggle not applied", "enabled", enabled, "error", err)
		return
	}
	c.logger.Info("cloud upload toggled", "enabled", enabled, "source", "mqtt")
}

// ParseToggle accepts true/false, on/off and 1/0, case-insensitively.
func ParseToggle(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid toggle payload %q", payload)
	}
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
// After Disconnect, Connect() will return "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
