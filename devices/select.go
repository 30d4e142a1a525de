package devices

// Reason explains why Select arrived at its result. The strings are
// surfaced in logs and in the diagnostics artifact.
type Reason string

const (
	// ReasonConfigured means the operator's configured path was honored
	// verbatim, whether or not discovery saw it.
	ReasonConfigured Reason = "user-configured"
	// ReasonSingle means exactly one candidate existed.
	ReasonSingle Reason = "single device auto-detected"
	// ReasonVendorMatch means a modem-vendor candidate was picked among
	// several devices.
	ReasonVendorMatch Reason = "modem vendor match among multiple devices"
	// ReasonManualRequired means several candidates exist and none looks
	// like a modem; the operator must configure a device explicitly.
	ReasonManualRequired Reason = "multiple devices, manual configuration required"
	// ReasonNoDevices means discovery found nothing.
	ReasonNoDevices Reason = "no devices found"
)

// Selected reports whether the reason carries a usable device path.
func (r Reason) Selected() bool {
	return r == ReasonConfigured || r == ReasonSingle || r == ReasonVendorMatch
}

// Select picks exactly one device path, or none.
//
// Priority order, first match wins:
//  1. configured path, verbatim, even if absent from candidates
//  2. a single candidate
//  3. the first modem-vendor match among multiple candidates
//  4. multiple candidates, no match: nothing, manual config required
//  5. zero candidates: nothing
//
// Ties within rule 3 break on discovery order, which is lexicographic over
// device names. The returned path prefers the candidate's stable alias.
func Select(candidates []Candidate, configured string) (string, Reason) {
	if configured != "" {
		return configured, ReasonConfigured
	}

	switch {
	case len(candidates) == 0:
		return "", ReasonNoDevices

	case len(candidates) == 1:
		return candidates[0].PreferredPath(), ReasonSingle

	default:
		for _, c := range candidates {
			if isModemVendor(c) {
				return c.PreferredPath(), ReasonVendorMatch
			}
		}
		return "", ReasonManualRequired
	}
}
