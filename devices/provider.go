package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Metadata is the USB identity of one serial device.
type Metadata struct {
	VendorID     string
	ProductID    string
	Model        string
	Manufacturer string
	Serial       string
}

// MetadataProvider resolves the USB metadata behind a serial device node.
//
// Two implementations exist: EnumeratorProvider, backed by the platform
// serial-port enumerator, and SysfsProvider, a minimal fallback that walks
// /sys directly. The richer one is chosen at startup when it works.
type MetadataProvider interface {
	// Describe returns the metadata for the tty at path. On error the
	// returned Metadata is discarded by callers, which keep their
	// "unknown" placeholders instead.
	Describe(path string) (Metadata, error)
}

// EnumeratorProvider reads port details from the OS enumerator.
type EnumeratorProvider struct {
	byName map[string]*enumerator.PortDetails
}

// NewEnumeratorProvider lists all ports once up front. An error here means
// the enumerator is unusable on this host and the caller should fall back
// to SysfsProvider.
func NewEnumeratorProvider() (*EnumeratorProvider, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	byName := make(map[string]*enumerator.PortDetails, len(ports))
	for _, p := range ports {
		byName[p.Name] = p
	}
	return &EnumeratorProvider{byName: byName}, nil
}

func (e *EnumeratorProvider) Describe(path string) (Metadata, error) {
	md := Metadata{
		VendorID:     unknown,
		ProductID:    unknown,
		Model:        unknown,
		Manufacturer: unknown,
		Serial:       unknown,
	}

	port, ok := e.byName[path]
	if !ok || !port.IsUSB {
		return md, fmt.Errorf("no USB details for %s", path)
	}
	if port.VID != "" {
		md.VendorID = strings.ToLower(port.VID)
	}
	if port.PID != "" {
		md.ProductID = strings.ToLower(port.PID)
	}
	if port.Product != "" {
		md.Model = port.Product
	}
	if port.SerialNumber != "" {
		md.Serial = port.SerialNumber
	}
	return md, nil
}

// SysfsProvider resolves metadata by walking the sysfs tree under
// /sys/class/tty/<node>/device up to the USB device directory that holds
// idVendor/idProduct.
type SysfsProvider struct {
	// Root is prepended to all sysfs paths; "" means the real filesystem.
	// Tests point it at a fabricated tree.
	Root string
}

func (s SysfsProvider) Describe(path string) (Metadata, error) {
	md := Metadata{
		VendorID:     unknown,
		ProductID:    unknown,
		Model:        unknown,
		Manufacturer: unknown,
		Serial:       unknown,
	}

	base := filepath.Base(path)
	deviceLink := filepath.Join(s.Root, "sys", "class", "tty", base, "device")
	resolved, err := filepath.EvalSymlinks(deviceLink)
	if err != nil {
		return md, fmt.Errorf("resolve %s: %w", deviceLink, err)
	}

	usbDir, err := findUSBDeviceDir(resolved)
	if err != nil {
		return md, err
	}

	if v, err := readSysValue(filepath.Join(usbDir, "idVendor")); err == nil {
		md.VendorID = strings.ToLower(v)
	}
	if v, err := readSysValue(filepath.Join(usbDir, "idProduct")); err == nil {
		md.ProductID = strings.ToLower(v)
	}
	if v, err := readSysValue(filepath.Join(usbDir, "product")); err == nil {
		md.Model = v
	}
	if v, err := readSysValue(filepath.Join(usbDir, "manufacturer")); err == nil {
		md.Manufacturer = v
	}
	if v, err := readSysValue(filepath.Join(usbDir, "serial")); err == nil {
		md.Serial = v
	}
	return md, nil
}

// findUSBDeviceDir climbs from a tty device directory towards the root
// until it hits the directory carrying idVendor. USB serial adapters nest
// the tty a few levels below the device itself.
func findUSBDeviceDir(start string) (string, error) {
	cur := start
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(cur, "idVendor")); err == nil {
			return cur, nil
		}
		next := filepath.Dir(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return "", fmt.Errorf("usb device root not found from %s", start)
}

func readSysValue(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
