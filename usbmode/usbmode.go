// Package usbmode switches Huawei USB modems from their initial
// mass-storage presentation into serial-modem mode.
//
// Many Huawei sticks enumerate as a virtual CD-ROM first and only expose
// ttyUSB nodes after a usb_modeswitch nudge. Detection works from a fixed
// allow-list of known storage-mode IDs, so unrelated USB devices are never
// touched.
package usbmode

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"i4.energy/across/smsbridge/run"
)

// DeviceID identifies a USB device by its vendor/product pair,
// lower-case hex without the 0x prefix.
type DeviceID struct {
	Vendor  string
	Product string
}

func (d DeviceID) String() string {
	return d.Vendor + ":" + d.Product
}

// storageModeDevices lists the known Huawei storage-mode identities.
// Anything not in this map is ignored.
var storageModeDevices = map[DeviceID]string{
	{"12d1", "1506"}: "Huawei E3276 storage mode",
	{"12d1", "1f01"}: "Huawei common storage mode",
	{"12d1", "1f02"}: "Huawei alternative storage mode",
	{"12d1", "1038"}: "Huawei storage mode variant",
	{"12d1", "1446"}: "Huawei another storage mode",
	{"12d1", "14fe"}: "Huawei storage mode variant",
	{"12d1", "1520"}: "Huawei storage mode variant",
}

const (
	defaultWaitTimeout   = 30 * time.Second
	defaultPollInterval  = time.Second
	defaultSwitchTimeout = 20 * time.Second
	defaultLsusbTimeout  = 10 * time.Second
)

// Switcher detects storage-mode modems and flips them to serial mode.
type Switcher struct {
	Runner run.Runner
	Logger *slog.Logger

	// DeviceGlob is the pattern polled for serial nodes after a switch.
	DeviceGlob string
	// WaitTimeout bounds AwaitSerialDevices.
	WaitTimeout time.Duration
	// PollInterval is the filesystem poll period while waiting.
	PollInterval time.Duration

	glob func(pattern string) ([]string, error)
}

// New returns a Switcher with production defaults.
func New(runner run.Runner, logger *slog.Logger) *Switcher {
	return &Switcher{
		Runner:       runner,
		Logger:       logger,
		DeviceGlob:   "/dev/ttyUSB*",
		WaitTimeout:  defaultWaitTimeout,
		PollInterval: defaultPollInterval,
		glob:         filepath.Glob,
	}
}

// DetectStorageDevices scans lsusb output for allow-listed storage-mode
// identities. A missing or failing lsusb yields an empty result, never an
// error: the modem may already be in serial mode.
func (s *Switcher) DetectStorageDevices(ctx context.Context) []DeviceID {
	ctx, cancel := context.WithTimeout(ctx, defaultLsusbTimeout)
	defer cancel()

	res, err := s.Runner.Run(ctx, "lsusb")
	if err != nil || !res.Ok() {
		s.Logger.Warn("lsusb not available or failed", "error", err, "exit_code", res.ExitCode)
		return nil
	}

	var found []DeviceID
	for _, line := range strings.Split(res.Stdout, "\n") {
		// lsusb format: Bus XXX Device YYY: ID vvvv:pppp ...
		_, rest, ok := strings.Cut(line, "ID ")
		if !ok {
			continue
		}
		idPart, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
		vendor, product, ok := strings.Cut(idPart, ":")
		if !ok {
			continue
		}
		id := DeviceID{Vendor: strings.ToLower(vendor), Product: strings.ToLower(product)}
		if desc, known := storageModeDevices[id]; known {
			s.Logger.Info("found modem in storage mode", "id", id.String(), "description", desc)
			found = append(found, id)
		}
	}
	return found
}

// Switch issues the mode-switch command for one device. The first attempt
// ejects the virtual storage (-J); if that fails a reset (-R) is tried
// once. Returns false only when both attempts fail.
func (s *Switcher) Switch(ctx context.Context, id DeviceID) bool {
	for _, flag := range []string{"-J", "-R"} {
		attemptCtx, cancel := context.WithTimeout(ctx, defaultSwitchTimeout)
		res, err := s.Runner.Run(attemptCtx, "usb_modeswitch",
			"-v", "0x"+id.Vendor, "-p", "0x"+id.Product, flag)
		cancel()

		if err == nil && res.Ok() {
			s.Logger.Info("mode switch command sent", "id", id.String(), "flag", flag)
			return true
		}
		s.Logger.Warn("mode switch attempt failed",
			"id", id.String(), "flag", flag, "error", err, "stderr", res.Stderr)
	}
	return false
}

// AwaitSerialDevices polls for serial device nodes until at least one
// appears or the wait timeout elapses.
func (s *Switcher) AwaitSerialDevices(ctx context.Context) bool {
	s.Logger.Info("waiting for serial devices to appear", "timeout", s.WaitTimeout)

	deadline := time.Now().Add(s.WaitTimeout)
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		if nodes, err := s.glob(s.DeviceGlob); err == nil && len(nodes) > 0 {
			s.Logger.Info("serial devices present", "count", len(nodes), "devices", strings.Join(nodes, ", "))
			return true
		}
		if time.Now().After(deadline) {
			s.Logger.Warn("no serial devices appeared", "timeout", s.WaitTimeout)
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Run performs the full acquisition pass: detect, switch, wait. A failed
// switch is logged and does not abort anything; the device may already be
// usable and discovery proceeds regardless.
func (s *Switcher) Run(ctx context.Context) {
	ids := s.DetectStorageDevices(ctx)
	if len(ids) == 0 {
		s.Logger.Info("no storage-mode modems detected, checking for existing serial devices")
		return
	}

	for _, id := range ids {
		if !s.Switch(ctx, id) {
			s.Logger.Warn("mode switch failed, continuing anyway", "id", id.String())
		}
	}
	s.AwaitSerialDevices(ctx)
}
