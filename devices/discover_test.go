package devices

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticProvider struct {
	byPath map[string]Metadata
}

func (p staticProvider) Describe(path string) (Metadata, error) {
	md, ok := p.byPath[path]
	if !ok {
		return Metadata{
			VendorID: unknown, ProductID: unknown, Model: unknown,
			Manufacturer: unknown, Serial: unknown,
		}, errors.New("no metadata")
	}
	return md, nil
}

func TestDiscover(t *testing.T) {
	dev := t.TempDir()

	touch := func(name string) string {
		path := filepath.Join(dev, name)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	usb0 := touch("ttyUSB0")
	usb1 := touch("ttyUSB1")

	byID := filepath.Join(dev, "by-id")
	if err := os.Mkdir(byID, 0o755); err != nil {
		t.Fatal(err)
	}
	alias := filepath.Join(byID, "usb-HUAWEI_Mobile-if00-port0")
	if err := os.Symlink(usb0, alias); err != nil {
		t.Fatal(err)
	}

	d := NewDiscoverer(staticProvider{byPath: map[string]Metadata{
		usb0: {VendorID: "12d1", ProductID: "1506", Model: "E3276", Manufacturer: "HUAWEI", Serial: "abc123"},
	}}, testLogger())
	d.DeviceGlob = filepath.Join(dev, "ttyUSB*")
	d.ByIDGlob = filepath.Join(byID, "*")

	got := d.Discover()
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(got), got)
	}

	if got[0].Path != usb0 || got[1].Path != usb1 {
		t.Errorf("candidates out of order: %v", got)
	}
	if got[0].VendorID != "12d1" || got[0].Model != "E3276" {
		t.Errorf("metadata not applied: %+v", got[0])
	}
	if got[0].ByIDPath != alias {
		t.Errorf("alias not associated: %+v", got[0])
	}
	// Metadata failure must not abort discovery.
	if got[1].VendorID != unknown || got[1].Manufacturer != unknown {
		t.Errorf("expected unknown metadata for %s: %+v", usb1, got[1])
	}
}

// blankProvider fails with zero-valued Metadata, the worst case a
// provider can return.
type blankProvider struct{}

func (blankProvider) Describe(string) (Metadata, error) {
	return Metadata{}, errors.New("probe failed")
}

func TestDescribeKeepsPlaceholdersOnProviderError(t *testing.T) {
	dev := t.TempDir()
	path := filepath.Join(dev, "ttyUSB0")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDiscoverer(blankProvider{}, testLogger())
	d.DeviceGlob = filepath.Join(dev, "ttyUSB*")
	d.ByIDGlob = filepath.Join(dev, "by-id", "*")

	got := d.Discover()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.VendorID != unknown || c.ProductID != unknown || c.Model != unknown ||
		c.Manufacturer != unknown || c.Serial != unknown {
		t.Errorf("placeholders lost on provider error: %+v", c)
	}
}

func TestDiscoverAliasOnlyDevice(t *testing.T) {
	dev := t.TempDir()

	real := filepath.Join(dev, "ttyACM0")
	if err := os.WriteFile(real, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	byID := filepath.Join(dev, "by-id")
	if err := os.Mkdir(byID, 0o755); err != nil {
		t.Fatal(err)
	}
	alias := filepath.Join(byID, "usb-Vendor_Thing-if00")
	if err := os.Symlink(real, alias); err != nil {
		t.Fatal(err)
	}

	d := NewDiscoverer(staticProvider{}, testLogger())
	d.DeviceGlob = filepath.Join(dev, "ttyUSB*") // matches nothing
	d.ByIDGlob = filepath.Join(byID, "*")

	got := d.Discover()
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Path != real || got[0].ByIDPath != alias {
		t.Errorf("unexpected candidate: %+v", got[0])
	}
}

func TestWriteInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "available_usb.json")

	t.Run("nil candidates write an empty array", func(t *testing.T) {
		if err := WriteInventory(path, nil); err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var got []Candidate
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty array, got %v", got)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		in := []Candidate{{Path: "/dev/ttyUSB0", VendorID: "12d1", ByIDPath: "/dev/serial/by-id/x"}}
		if err := WriteInventory(path, in); err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var got []Candidate
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != in[0] {
			t.Errorf("round trip mismatch: %v", got)
		}
	})
}

func TestSysfsProvider(t *testing.T) {
	root := t.TempDir()

	// Fabricate the sysfs shape: the tty device directory sits two levels
	// below the USB device directory that carries idVendor.
	usbDev := filepath.Join(root, "sys", "devices", "usb1", "1-1")
	ttyDev := filepath.Join(usbDev, "1-1:1.0", "ttyUSB0")
	if err := os.MkdirAll(ttyDev, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, val string) {
		if err := os.WriteFile(filepath.Join(usbDev, name), []byte(val+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("idVendor", "12d1")
	write("idProduct", "1506")
	write("manufacturer", "HUAWEI")
	write("product", "HUAWEI Mobile")
	write("serial", "0123456789")

	classDir := filepath.Join(root, "sys", "class", "tty", "ttyUSB0")
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(ttyDev, filepath.Join(classDir, "device")); err != nil {
		t.Fatal(err)
	}

	md, err := SysfsProvider{Root: root}.Describe("/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if md.VendorID != "12d1" || md.ProductID != "1506" {
		t.Errorf("unexpected ids: %+v", md)
	}
	if md.Manufacturer != "HUAWEI" || md.Model != "HUAWEI Mobile" || md.Serial != "0123456789" {
		t.Errorf("unexpected strings: %+v", md)
	}

	t.Run("unknown node keeps defaults", func(t *testing.T) {
		md, err := SysfsProvider{Root: root}.Describe("/dev/ttyUSB7")
		if err == nil {
			t.Error("expected error for missing node")
		}
		if md.VendorID != unknown {
			t.Errorf("expected unknown vendor, got %q", md.VendorID)
		}
	})
}
