package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrConnectBudget is returned when the broker stays unreachable through
// the whole connect retry budget. It is the only condition the bridge
// treats as fatal after startup.
var ErrConnectBudget = errors.New("mqtt connect retry budget exhausted")

const (
	connectAttempts = 5
	connectBackoff  = 10 * time.Second
	publishTimeout  = 5 * time.Second

	defaultTopicPrefix = "sms-gateway"
)

// Config carries broker connection settings.
type Config struct {
	Broker      string
	Port        int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Client wraps the paho client with the bridge's topic layout. Outbox
// payloads accepted off the wire are handed to OnOutbound; everything
// else is publish-only.
type Client struct {
	conn   mqtt.Client
	logger *slog.Logger
	prefix string

	// OnOutbound receives every valid payload seen on the outbox topic.
	// Must be set before Connect.
	OnOutbound func(number, text string)
}

// NewClient builds a client; no network traffic happens until Connect.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sms-bridge"
	}
	c := &Client{
		logger: logger,
		prefix: cfg.TopicPrefix,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetryInterval(connectBackoff).
		SetWill(c.topic("status"), string(EncodeStatus(false, time.Now())), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("broker connection lost", "error", err)
		})

	c.conn = mqtt.NewClient(opts)
	return c
}

func (c *Client) topic(leaf string) string {
	return c.prefix + "/" + leaf
}

// Connect dials the broker, retrying a bounded number of times. A broker
// that never answers within the budget yields ErrConnectBudget.
func (c *Client) Connect() error {
	var last error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		token := c.conn.Connect()
		token.Wait()
		if token.Error() == nil {
			return nil
		}
		last = token.Error()
		c.logger.Warn("broker connect failed",
			"attempt", attempt,
			"of", connectAttempts,
			"error", last)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	return errors.Join(ErrConnectBudget, last)
}

// onConnect runs on every (re)connect so the outbox subscription survives
// broker restarts.
func (c *Client) onConnect(conn mqtt.Client) {
	c.logger.Info("connected to broker")
	token := conn.Subscribe(c.topic("outbox"), 1, c.handleOutbound)
	if token.Wait() && token.Error() != nil {
		c.logger.Error("outbox subscribe failed", "error", token.Error())
		return
	}
	c.publish("status", EncodeStatus(true, time.Now()), true)
}

func (c *Client) handleOutbound(_ mqtt.Client, msg mqtt.Message) {
	p, err := DecodeOutbound(msg.Payload())
	if err != nil {
		c.logger.Warn("rejecting outbox payload", "error", err)
		return
	}
	if c.OnOutbound != nil {
		c.OnOutbound(p.Number, p.Text)
	}
}

func (c *Client) publish(leaf string, payload []byte, retain bool) error {
	token := c.conn.Publish(c.topic(leaf), 1, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", c.topic(leaf))
	}
	return token.Error()
}

// PublishInbound announces one received message on the inbox topic. The
// caller must not delete the message from the modem until this returns
// nil.
func (c *Client) PublishInbound(number, text string, at time.Time) error {
	return c.publish("inbox", EncodeInbound(number, text, at), false)
}

// PublishStatus updates the retained status document.
func (c *Client) PublishStatus(online bool) error {
	return c.publish("status", EncodeStatus(online, time.Now()), true)
}

// PublishDiagnostics retains the connection negotiation outcome so late
// subscribers can inspect how the modem came up.
func (c *Client) PublishDiagnostics(payload []byte) error {
	return c.publish("diagnostics", payload, true)
}

// PublishInventory retains the discovered serial device list.
func (c *Client) PublishInventory(payload []byte) error {
	return c.publish("devices", payload, true)
}

// Disconnect flushes and tears down the broker session. The transport
// loop owns the final offline status publish; by the time this runs it
// has already gone out.
func (c *Client) Disconnect() {
	c.conn.Disconnect(250)
}
