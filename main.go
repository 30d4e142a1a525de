package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"i4.energy/across/smsbridge/bridge"
	"i4.energy/across/smsbridge/bus"
	"i4.energy/across/smsbridge/devices"
	"i4.energy/across/smsbridge/gammu"
	"i4.energy/across/smsbridge/hass"
	"i4.energy/across/smsbridge/probe"
	"i4.energy/across/smsbridge/run"
	"i4.energy/across/smsbridge/usbmode"
)

func main() {
	flag.String("device", "", "Modem device path (empty for auto-detect)")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP API")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("data-dir", "/data", "Directory for runtime artifacts")
	flag.String("mqtt-broker", "core-mosquitto", "MQTT broker host")
	flag.Int("mqtt-port", 1883, "MQTT broker port")
	optionsPath := flag.String("options", "/data/options.json", "Path to the add-on options file")
	flag.Parse()

	boot := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	config, err := LoadConfig(
		WithDefaults(),
		WithOptionsFile(*optionsPath, boot),
		WithEnv(),
		WithFlags(flag.CommandLine),
	)
	if err != nil {
		boot.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := run.ExecRunner{}

	// Phase 1: flip any Huawei sticks still parked in storage mode.
	usbmode.New(runner, logger.With("component", "usbmode")).Run(ctx)

	// Phase 2: discover serial devices and pick the modem.
	var provider devices.MetadataProvider
	if p, err := devices.NewEnumeratorProvider(); err == nil {
		provider = p
	} else {
		logger.Warn("port enumeration unavailable, falling back to sysfs", "error", err)
		provider = devices.SysfsProvider{}
	}
	discoverer := devices.NewDiscoverer(provider, logger.With("component", "devices"))
	candidates := discoverer.Discover()

	inventoryPath := filepath.Join(config.DataDir, "sms_gateway_devices.json")
	if err := devices.WriteInventory(inventoryPath, candidates); err != nil {
		logger.Warn("inventory write failed", "path", inventoryPath, "error", err)
	}

	device, reason := devices.Select(candidates, config.Device)
	logger.Info("device selection", "device", device, "reason", string(reason))

	// Phase 3: negotiate a working gammu connection profile.
	diagnosticsPath := filepath.Join(config.DataDir, "sms_gateway_diagnostics.json")
	probeLogger := logger.With("component", "probe")
	outcome := probe.Outcome{
		Timestamp: time.Now().UTC(),
		AllFailed: true,
	}
	if device != "" {
		prober := probe.NewGammuProber(runner, probeLogger)
		outcome = probe.Negotiate(ctx, prober, device, probe.DefaultProfiles, probeLogger)

		rcPath := filepath.Join(config.DataDir, "gammurc")
		if err := gammu.WriteRC(rcPath, device, outcome.Connections(probe.DefaultProfiles)); err != nil {
			logger.Warn("gammurc write failed", "path", rcPath, "error", err)
		}
	}
	outcome.SelectionReason = string(reason)
	outcome.ConfiguredDevice = config.Device
	if err := outcome.Save(diagnosticsPath); err != nil {
		logger.Warn("diagnostics write failed", "path", diagnosticsPath, "error", err)
	}

	// Phase 4: connect the bus. This is the only fatal failure mode after
	// startup; everything modem-side degrades instead.
	queue := bridge.NewQueue()

	busLogger := logger.With("component", "bus")
	client := bus.NewClient(bus.Config{
		Broker:   config.MQTTBroker,
		Port:     config.MQTTPort,
		Username: config.MQTTUsername,
		Password: config.MQTTPassword,
	}, busLogger)
	client.OnOutbound = func(number, text string) {
		if err := queue.Enqueue(number, text); err != nil {
			busLogger.Warn("rejecting outbound request", "number", number, "error", err)
		}
	}
	if err := client.Connect(); err != nil {
		logger.Error("Failed to connect to broker", "error", err)
		os.Exit(1)
	}

	if payload, err := json.Marshal(outcome); err == nil {
		if err := client.PublishDiagnostics(payload); err != nil {
			logger.Warn("diagnostics publish failed", "error", err)
		}
	}
	if inventory, err := os.ReadFile(inventoryPath); err == nil {
		if err := client.PublishInventory(inventory); err != nil {
			logger.Warn("inventory publish failed", "error", err)
		}
	}

	// Phase 5: transport loop plus the HTTP API.
	automation := hass.NewClient(config.SupervisorToken, logger.With("component", "hass"))
	automation.NotifyOnReceive = config.NotifyOnReceive
	if automation.Enabled() {
		automation.ModemConnected(false)
	}

	modem := gammu.NewClient(runner, device, logger.With("component", "gammu"))

	loop := bridge.NewLoop(modem, queue, client, automation, logger.With("component", "bridge"))
	loop.MaxAttempts = config.MaxSendAttempts
	loop.Rediscover = func() string {
		path, reason := devices.Select(discoverer.Discover(), config.Device)
		if !reason.Selected() {
			return ""
		}
		return path
	}

	server := &Server{
		Logger:          logger.With("component", "server"),
		Queue:           queue,
		Status:          loop.Status,
		InventoryPath:   inventoryPath,
		DiagnosticsPath: diagnosticsPath,
	}
	httpServer := &http.Server{
		Addr:    config.BindAddress,
		Handler: server.Handler(),
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	logger.Info("Starting transport loop", "device", device)
	loop.Run(ctx)

	logger.Info("Shutting down")
	client.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}
