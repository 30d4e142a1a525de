// Package gammu wraps the external gammu toolchain.
//
// The bridge never speaks AT commands itself; every modem interaction is
// one bounded gammu process invocation. Callers are expected to serialize
// invocations; the underlying serial link has no multiplexing.
package gammu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/smsbridge/run"
)

var (
	// ErrNoDevice is returned when an operation is attempted before a
	// device path has been configured or discovered.
	ErrNoDevice = errors.New("no modem device configured")

	// ErrCommandFailed is returned when gammu exits non-zero. The wrapped
	// message carries stderr for diagnostics.
	ErrCommandFailed = errors.New("gammu command failed")
)

const (
	defaultBinary = "gammu"

	identifyTimeout = 10 * time.Second
	sendTimeout     = 30 * time.Second
	listTimeout     = 30 * time.Second
	deleteTimeout   = 10 * time.Second
)

// Client runs gammu operations against one modem device.
//
// The device path may be empty at construction time (degraded mode) and
// set later once discovery finds hardware.
type Client struct {
	runner run.Runner
	logger *slog.Logger
	binary string

	mu     sync.Mutex
	device string
}

// NewClient returns a Client for the given device path, which may be
// empty.
func NewClient(runner run.Runner, device string, logger *slog.Logger) *Client {
	return &Client{
		runner: runner,
		logger: logger,
		binary: defaultBinary,
		device: device,
	}
}

// Device returns the currently configured device path.
func (c *Client) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// SetDevice replaces the device path, used when hardware shows up after
// startup.
func (c *Client) SetDevice(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = path
}

func (c *Client) exec(ctx context.Context, timeout time.Duration, args ...string) (run.Result, error) {
	device := c.Device()
	if device == "" {
		return run.Result{ExitCode: -1}, ErrNoDevice
	}

	// An in-flight gammu invocation must finish under its own timeout
	// even while the process is shutting down; killing it mid-transaction
	// can wedge the modem. Callers check their context between calls.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	full := append([]string{"--device", device}, args...)
	res, err := c.runner.Run(ctx, c.binary, full...)
	if err != nil {
		return res, fmt.Errorf("run gammu %s: %w", args[0], err)
	}
	if !res.Ok() {
		return res, fmt.Errorf("%w: %s: %s", ErrCommandFailed, args[0], firstLine(res.Stderr))
	}
	return res, nil
}

// Identify asks the modem for its identity. Used as the reachability
// check; success means the link is usable.
func (c *Client) Identify(ctx context.Context) error {
	_, err := c.exec(ctx, identifyTimeout, "identify")
	return err
}

// Send delivers one text message. Blocks until gammu reports network
// acceptance or the timeout fires.
func (c *Client) Send(ctx context.Context, number, text string) error {
	_, err := c.exec(ctx, sendTimeout, "sendsms", "TEXT", number, "-text", text)
	return err
}

// ListInbox reads all stored messages from the modem. A non-zero exit is
// treated as an empty inbox rather than an error, matching gammu's habit
// of failing when no messages exist.
func (c *Client) ListInbox(ctx context.Context) ([]Message, error) {
	res, err := c.exec(ctx, listTimeout, "getallsms")
	if err != nil {
		if errors.Is(err, ErrNoDevice) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Debug("getallsms returned no messages", "error", err)
		return nil, nil
	}
	msgs, err := ParseReport(res.Stdout)
	if err != nil {
		c.logger.Warn("inbox report truncated", "parsed", len(msgs), "error", err)
	}
	return msgs, nil
}

// Delete removes the message stored at location from folder. Called only
// after the message has been published; deletion is what provides
// duplicate avoidance across polling cycles.
func (c *Client) Delete(ctx context.Context, folder, location string) error {
	_, err := c.exec(ctx, deleteTimeout, "deletesms", folder, location)
	return err
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
