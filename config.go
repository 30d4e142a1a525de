package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the HTTP API listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// Device is the configured modem device path; empty means auto-detect
	Device string
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// DataDir is where runtime artifacts (gammurc, diagnostics, inventory) are written
	DataDir string
	// NotifyOnReceive forwards inbound messages as Home Assistant notifications
	NotifyOnReceive bool
	// MaxSendAttempts abandons an outbound message after this many failures; 0 retries forever
	MaxSendAttempts int

	// MQTT broker connection settings
	MQTTBroker   string
	MQTTPort     int
	MQTTUsername string
	MQTTPassword string

	// SupervisorToken authenticates against the Home Assistant core API;
	// empty disables the integration
	SupervisorToken string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.LogLevel = "info"
		c.DataDir = "/data"
		c.MQTTBroker = "core-mosquitto"
		c.MQTTPort = 1883
		return nil
	}
}

// optionsFile mirrors the add-on options document. Only recognized keys
// are read; everything else is ignored.
type optionsFile struct {
	Device             string `json:"device"`
	NotificationOnRecv *bool  `json:"notification_on_receive"`
	MaxSendAttempts    *int   `json:"max_send_attempts"`
	MQTT               struct {
		Broker   string `json:"broker"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"mqtt"`
}

// WithOptionsFile loads configuration from a JSON options file. A missing
// or malformed file is logged and skipped; startup never fails on it.
func WithOptionsFile(path string, logger *slog.Logger) ConfigOption {
	return func(c *Config) error {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("options file unreadable, using defaults", "path", path, "error", err)
			}
			return nil
		}

		var opts optionsFile
		if err := json.Unmarshal(raw, &opts); err != nil {
			logger.Warn("options file malformed, using defaults", "path", path, "error", err)
			return nil
		}

		if opts.Device != "" {
			c.Device = opts.Device
		}
		if opts.NotificationOnRecv != nil {
			c.NotifyOnReceive = *opts.NotificationOnRecv
		}
		if opts.MaxSendAttempts != nil && *opts.MaxSendAttempts >= 0 {
			c.MaxSendAttempts = *opts.MaxSendAttempts
		}
		if opts.MQTT.Broker != "" {
			c.MQTTBroker = opts.MQTT.Broker
		}
		if opts.MQTT.Port != 0 {
			c.MQTTPort = opts.MQTT.Port
		}
		if opts.MQTT.Username != "" {
			c.MQTTUsername = opts.MQTT.Username
		}
		if opts.MQTT.Password != "" {
			c.MQTTPassword = opts.MQTT.Password
		}

		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if device := os.Getenv("SMS_DEVICE"); device != "" {
			c.Device = device
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if dir := os.Getenv("DATA_DIR"); dir != "" {
			c.DataDir = dir
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTTBroker = broker
		}

		if port := os.Getenv("MQTT_PORT"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				c.MQTTPort = p
			}
		}

		if user := os.Getenv("MQTT_USERNAME"); user != "" {
			c.MQTTUsername = user
		}

		if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
			c.MQTTPassword = pass
		}

		if token := os.Getenv("SUPERVISOR_TOKEN"); token != "" {
			c.SupervisorToken = token
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "device":
				c.Device = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "data-dir":
				c.DataDir = f.Value.String()
			case "mqtt-broker":
				c.MQTTBroker = f.Value.String()
			case "mqtt-port":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.MQTTPort = p
				}
			}
		})
		return nil
	}
}
