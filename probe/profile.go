// Package probe negotiates a working gammu connection profile for a
// serial device.
//
// A fixed catalogue of profiles is tried fast-to-slow. Every profile is
// probed even after one succeeds, so the diagnostics artifact always
// carries the full trail; only the first success is chosen.
package probe

// Profile is one named set of link parameters.
type Profile struct {
	// Label is the human-facing name, e.g. "at115200".
	Label string `json:"label"`
	// Connection is the value written into the gammurc connection key.
	Connection string `json:"connection"`
}

// DefaultProfiles is the fallback catalogue in trial order: full-speed AT,
// degraded 9600 baud, then the bare autodetecting profile. The order is
// fixed and identical across runs.
var DefaultProfiles = []Profile{
	{Label: "at115200", Connection: "at115200"},
	{Label: "at9600", Connection: "at9600"},
	{Label: "at", Connection: "at"},
}

// Labels returns the connection values of profiles in order.
func Labels(profiles []Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Connection
	}
	return out
}
