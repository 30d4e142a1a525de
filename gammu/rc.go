package gammu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SectionName returns the gammurc section name for the i-th connection
// entry: the primary section is [gammu], fallbacks are [gammu1],
// [gammu2] and so on, the naming gammu's own default-section
// resolution expects.
func SectionName(i int) string {
	if i == 0 {
		return "gammu"
	}
	return fmt.Sprintf("gammu%d", i)
}

// RCContent renders a gammurc document for device with connections in
// priority order. connections[0] becomes the primary [gammu] section,
// the rest form an explicit fallback chain.
func RCContent(device string, connections []string) string {
	var b strings.Builder
	for i, conn := range connections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\nport = %s\nconnection = %s\n", SectionName(i), device, conn)
	}
	return b.String()
}

// WriteRC persists the modem configuration at path.
func WriteRC(path, device string, connections []string) error {
	if len(connections) == 0 {
		return fmt.Errorf("no connections to write for %s", device)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(RCContent(device, connections)), 0o644)
}
