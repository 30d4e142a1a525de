package probe

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"i4.energy/across/smsbridge/gammu"
)

// Outcome is the immutable result of one negotiation pass. Its JSON form
// is the diagnostics artifact that gets persisted and republished.
type Outcome struct {
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	// Chosen is the first profile that probed successfully, nil when all
	// failed.
	Chosen    *Profile `json:"successful_connection"`
	AllFailed bool     `json:"all_failed"`
	// SelectionReason and ConfiguredDevice carry the device-selection
	// context into the artifact for operability.
	SelectionReason  string   `json:"selection_reason,omitempty"`
	ConfiguredDevice string   `json:"configured_device,omitempty"`
	Results          []Result `json:"tested_connections"`
}

// Negotiate drives the prober across every profile in order. It does not
// stop at the first success; the remaining profiles are still probed so
// the outcome carries a complete diagnostic record. Only the first
// success becomes Chosen.
func Negotiate(ctx context.Context, prober Prober, device string, profiles []Profile, logger *slog.Logger) Outcome {
	outcome := Outcome{
		Timestamp: time.Now().UTC(),
		Device:    device,
	}

	for i, profile := range profiles {
		result := prober.Probe(ctx, device, profile)
		result.Section = gammu.SectionName(i)
		outcome.Results = append(outcome.Results, result)

		if result.Success && outcome.Chosen == nil {
			chosen := profile
			outcome.Chosen = &chosen
			logger.Info("found working connection", "connection", profile.Connection)
		}
	}

	outcome.AllFailed = outcome.Chosen == nil
	if outcome.AllFailed {
		logger.Warn("all connection probes failed", "device", device)
	}
	return outcome
}

// Connections returns the rc-file connection order for this outcome: the
// chosen profile first, then the remaining catalogue as the fallback
// chain. When all probes failed the catalogue order stands unchanged, so
// the transport loop still has a deterministic starting point.
func (o Outcome) Connections(catalogue []Profile) []string {
	if o.Chosen == nil {
		return Labels(catalogue)
	}
	out := []string{o.Chosen.Connection}
	for _, p := range catalogue {
		if p.Connection != o.Chosen.Connection {
			out = append(out, p.Connection)
		}
	}
	return out
}

// Save persists the outcome JSON at path for operator inspection.
func (o Outcome) Save(path string) error {
	b, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
