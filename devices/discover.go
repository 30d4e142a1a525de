package devices

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Discoverer scans for candidate serial devices.
type Discoverer struct {
	Provider MetadataProvider
	Logger   *slog.Logger

	// DeviceGlob matches raw serial nodes, ByIDGlob the stable aliases.
	DeviceGlob string
	ByIDGlob   string
}

// NewDiscoverer returns a Discoverer with production globs.
func NewDiscoverer(provider MetadataProvider, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		Provider:   provider,
		Logger:     logger,
		DeviceGlob: "/dev/ttyUSB*",
		ByIDGlob:   "/dev/serial/by-id/*",
	}
}

// Discover returns all candidate devices in lexicographic path order,
// each enriched with metadata best effort. Metadata failures never abort
// discovery; the candidate keeps its "unknown" defaults.
func (d *Discoverer) Discover() []Candidate {
	var candidates []Candidate

	nodes, err := filepath.Glob(d.DeviceGlob)
	if err != nil {
		d.Logger.Warn("device glob failed", "pattern", d.DeviceGlob, "error", err)
	}
	sort.Strings(nodes)

	for _, path := range nodes {
		c := d.describe(path)
		candidates = append(candidates, c)
		d.Logger.Info("discovered device",
			"path", c.Path, "vendor", c.VendorID, "product", c.ProductID, "model", c.Model)
	}

	// Associate stable aliases with the nodes they resolve to. An alias
	// pointing at a node we have not seen yet becomes its own candidate.
	aliases, err := filepath.Glob(d.ByIDGlob)
	if err != nil {
		d.Logger.Warn("by-id glob failed", "pattern", d.ByIDGlob, "error", err)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		real, err := filepath.EvalSymlinks(alias)
		if err != nil {
			d.Logger.Debug("cannot resolve alias", "alias", alias, "error", err)
			continue
		}
		matched := false
		for i := range candidates {
			if candidates[i].Path == real {
				candidates[i].ByIDPath = alias
				matched = true
				break
			}
		}
		if !matched {
			c := d.describe(real)
			c.ByIDPath = alias
			candidates = append(candidates, c)
			d.Logger.Info("discovered device via alias", "alias", alias, "path", real)
		}
	}

	return candidates
}

func (d *Discoverer) describe(path string) Candidate {
	c := Candidate{
		Path:         path,
		VendorID:     unknown,
		ProductID:    unknown,
		Model:        unknown,
		Manufacturer: unknown,
		Serial:       unknown,
	}
	if d.Provider == nil {
		return c
	}
	md, err := d.Provider.Describe(path)
	if err != nil {
		d.Logger.Debug("no metadata for device", "path", path, "error", err)
		return c
	}
	c.VendorID = md.VendorID
	c.ProductID = md.ProductID
	c.Model = md.Model
	c.Manufacturer = md.Manufacturer
	c.Serial = md.Serial
	return c
}

// WriteInventory persists the discovered candidates as a JSON array for
// operator inspection. Written on every discovery pass, including an
// empty one.
func WriteInventory(path string, candidates []Candidate) error {
	if candidates == nil {
		candidates = []Candidate{}
	}
	b, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
