// Package hass pushes bridge state into Home Assistant through the
// supervisor proxy API. Every call is best-effort: the bridge keeps
// working when the API is absent, slow, or failing.
package hass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "http://supervisor/core/api"
	requestTimeout = 5 * time.Second

	sensorModemConnected = "binary_sensor.sms_gateway_modem_connected"
	sensorLastMessage    = "sensor.sms_gateway_last_message"
	eventMessageReceived = "sms_gateway_message_received"
)

// Client talks to the Home Assistant core API. A client with an empty
// token is disabled and turns every call into a no-op.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	// NotifyOnReceive forwards each inbound message as a persistent
	// notification.
	NotifyOnReceive bool
}

// NewClient builds a client from the supervisor token. Pass an empty
// token to disable the integration.
func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Enabled reports whether a supervisor token is present.
func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

func (c *Client) post(path string, body any) error {
	if !c.Enabled() {
		return nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// UpdateSensor sets an entity's state with optional attributes.
func (c *Client) UpdateSensor(entity, state string, attrs map[string]any) error {
	return c.post("/states/"+entity, map[string]any{
		"state":      state,
		"attributes": attrs,
	})
}

// FireEvent emits a custom event on the Home Assistant event bus.
func (c *Client) FireEvent(eventType string, data map[string]any) error {
	return c.post("/events/"+eventType, data)
}

// Notify creates a persistent notification.
func (c *Client) Notify(title, message string) error {
	return c.post("/services/persistent_notification/create", map[string]any{
		"title":   title,
		"message": message,
	})
}

// ModemConnected reflects modem reachability into the binary sensor.
func (c *Client) ModemConnected(connected bool) {
	state := "off"
	if connected {
		state = "on"
	}
	err := c.UpdateSensor(sensorModemConnected, state, map[string]any{
		"friendly_name": "SMS Gateway Modem",
		"device_class":  "connectivity",
	})
	if err != nil {
		c.logger.Debug("sensor update failed", "entity", sensorModemConnected, "error", err)
	}
}

// MessageReceived mirrors one inbound message into Home Assistant: event,
// last-message sensor, and optionally a notification.
func (c *Client) MessageReceived(number, text string) {
	if !c.Enabled() {
		return
	}
	at := time.Now().UTC().Format(time.RFC3339)

	if err := c.FireEvent(eventMessageReceived, map[string]any{
		"number":    number,
		"text":      text,
		"timestamp": at,
	}); err != nil {
		c.logger.Debug("event fire failed", "event", eventMessageReceived, "error", err)
	}

	if err := c.UpdateSensor(sensorLastMessage, text, map[string]any{
		"friendly_name": "SMS Gateway Last Message",
		"number":        number,
		"timestamp":     at,
	}); err != nil {
		c.logger.Debug("sensor update failed", "entity", sensorLastMessage, "error", err)
	}

	if c.NotifyOnReceive {
		if err := c.Notify("SMS from "+number, text); err != nil {
			c.logger.Debug("notification failed", "error", err)
		}
	}
}
