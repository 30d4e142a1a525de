// Package devices discovers candidate serial devices and picks the one
// the bridge should talk to.
//
// Discovery enumerates /dev/ttyUSB* nodes and enriches each with USB
// metadata, best effort: a device we cannot describe still shows up with
// "unknown" fields. Selection applies a strict priority policy, with the
// operator's configured path always winning.
package devices

import "strings"

const unknown = "unknown"

// Candidate is one discovered serial device with its USB metadata.
// Candidates are immutable once discovery finishes and are compared by
// Path. The JSON form is what lands in the device inventory artifact.
type Candidate struct {
	Path         string `json:"path"`
	VendorID     string `json:"vendor"`
	ProductID    string `json:"product"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	Serial       string `json:"serial"`
	// ByIDPath is the stable /dev/serial/by-id alias, if one exists.
	// Preferred over Path for long-term configuration since it survives
	// re-enumeration.
	ByIDPath string `json:"by_id_path,omitempty"`
}

// huaweiVendorID is the USB vendor id assigned to Huawei.
const huaweiVendorID = "12d1"

// modemPatterns are model/product substrings of common Huawei modems.
var modemPatterns = []string{
	"e3276", "e3131", "e3372", "e3531", "e353", "e173",
	"huawei", "mobile_connect", "mobile connect",
}

// isModemVendor reports whether a candidate looks like a Huawei modem.
// Checks run in priority order: by-id alias, vendor id, manufacturer
// string, then model/product substring patterns.
func isModemVendor(c Candidate) bool {
	if c.ByIDPath != "" && strings.Contains(strings.ToLower(c.ByIDPath), "huawei") {
		return true
	}
	if strings.ToLower(c.VendorID) == huaweiVendorID {
		return true
	}
	if strings.Contains(strings.ToLower(c.Manufacturer), "huawei") {
		return true
	}
	model := strings.ToLower(c.Model)
	product := strings.ToLower(c.ProductID)
	for _, pattern := range modemPatterns {
		if strings.Contains(model, pattern) || strings.Contains(product, pattern) {
			return true
		}
	}
	return false
}

// PreferredPath returns the stable alias when present, else the raw path.
func (c Candidate) PreferredPath() string {
	if c.ByIDPath != "" {
		return c.ByIDPath
	}
	return c.Path
}
