package probe

import (
	"context"
	"log/slog"
	"os"
	"time"

	"i4.energy/across/smsbridge/gammu"
	"i4.energy/across/smsbridge/run"
)

// Result records one (device, profile) trial. Append-only: results are
// collected into the negotiation outcome and never mutated afterwards.
type Result struct {
	Profile     Profile   `json:"profile"`
	Section     string    `json:"section"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	ErrorDetail string    `json:"error_details,omitempty"`
	DevicePath  string    `json:"device_path"`
}

// Prober runs a single bounded connection attempt.
type Prober interface {
	Probe(ctx context.Context, device string, profile Profile) Result
}

const (
	defaultIdentifyTimeout = 5 * time.Second
	defaultInitTimeout     = 10 * time.Second

	// rawOutputLimit bounds captured toolchain output in the
	// diagnostics artifact.
	rawOutputLimit = 1000
)

// GammuProber probes by pointing gammu at a throwaway rc file and
// running a two-stage check: a lightweight identify, then a full
// initialization command. A stage-1 failure short-circuits stage 2.
type GammuProber struct {
	Runner run.Runner
	Logger *slog.Logger

	// Binary defaults to "gammu".
	Binary string
	// IdentifyTimeout bounds stage 1, InitTimeout stage 2.
	IdentifyTimeout time.Duration
	InitTimeout     time.Duration
}

// NewGammuProber returns a prober with production defaults.
func NewGammuProber(runner run.Runner, logger *slog.Logger) *GammuProber {
	return &GammuProber{
		Runner:          runner,
		Logger:          logger,
		Binary:          "gammu",
		IdentifyTimeout: defaultIdentifyTimeout,
		InitTimeout:     defaultInitTimeout,
	}
}

func (g *GammuProber) Probe(ctx context.Context, device string, profile Profile) Result {
	result := Result{
		Profile:    profile,
		DevicePath: device,
		Timestamp:  time.Now().UTC(),
	}

	g.Logger.Info("probing connection", "connection", profile.Connection, "device", device)

	rcFile, err := os.CreateTemp("", "gammurc_try_*.ini")
	if err != nil {
		result.ErrorDetail = "write probe config: " + err.Error()
		return result
	}
	rcPath := rcFile.Name()
	defer os.Remove(rcPath)

	content := gammu.RCContent(device, []string{profile.Connection})
	if _, err := rcFile.WriteString(content); err != nil {
		rcFile.Close()
		result.ErrorDetail = "write probe config: " + err.Error()
		return result
	}
	rcFile.Close()

	// Stage 1: identify. Cheap, catches wrong-speed and dead links.
	res, err := g.runStage(ctx, g.IdentifyTimeout, rcPath, "identify")
	result.Stdout = truncate(res.Stdout)
	result.Stderr = truncate(res.Stderr)
	if err != nil || !res.Ok() {
		result.ErrorDetail = stageError("identify", res, err)
		g.Logger.Debug("probe failed at identify stage",
			"connection", profile.Connection, "detail", result.ErrorDetail)
		return result
	}

	// Stage 2: full initialization.
	res, err = g.runStage(ctx, g.InitTimeout, rcPath, "getsecuritystatus")
	if err != nil || !res.Ok() {
		result.ErrorDetail = stageError("init", res, err)
		g.Logger.Debug("probe failed at init stage",
			"connection", profile.Connection, "detail", result.ErrorDetail)
		return result
	}

	result.Success = true
	g.Logger.Info("connection is working", "connection", profile.Connection)
	return result
}

func (g *GammuProber) runStage(ctx context.Context, timeout time.Duration, rcPath string, command string) (run.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := g.Binary
	if binary == "" {
		binary = "gammu"
	}
	return g.Runner.Run(ctx, binary, "--config", rcPath, command)
}

func stageError(stage string, res run.Result, err error) string {
	if err != nil {
		return stage + " failed: " + err.Error()
	}
	detail := res.Stderr
	if detail == "" {
		detail = res.Stdout
	}
	return stage + " failed: " + truncate(detail)
}

func truncate(s string) string {
	if len(s) > rawOutputLimit {
		return s[:rawOutputLimit]
	}
	return s
}
