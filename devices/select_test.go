package devices

import "testing"

func TestSelect(t *testing.T) {
	huawei := Candidate{Path: "/dev/ttyUSB0", VendorID: "12d1"}
	arduino := Candidate{Path: "/dev/ttyUSB1", VendorID: "2341", Manufacturer: "Arduino"}
	ftdi := Candidate{Path: "/dev/ttyUSB2", VendorID: "0403", Manufacturer: "FTDI"}

	tests := []struct {
		name       string
		candidates []Candidate
		configured string
		wantPath   string
		wantReason Reason
	}{
		{
			name:       "configured path wins over everything",
			candidates: []Candidate{huawei, arduino},
			configured: "/dev/ttyUSB9",
			wantPath:   "/dev/ttyUSB9",
			wantReason: ReasonConfigured,
		},
		{
			name:       "configured path honored even with no candidates",
			candidates: nil,
			configured: "/dev/ttyACM0",
			wantPath:   "/dev/ttyACM0",
			wantReason: ReasonConfigured,
		},
		{
			name:       "single candidate selected regardless of metadata",
			candidates: []Candidate{ftdi},
			wantPath:   "/dev/ttyUSB2",
			wantReason: ReasonSingle,
		},
		{
			name:       "single huawei candidate",
			candidates: []Candidate{huawei},
			wantPath:   "/dev/ttyUSB0",
			wantReason: ReasonSingle,
		},
		{
			name:       "vendor id match among multiple",
			candidates: []Candidate{arduino, huawei, ftdi},
			wantPath:   "/dev/ttyUSB0",
			wantReason: ReasonVendorMatch,
		},
		{
			name: "manufacturer string match",
			candidates: []Candidate{
				arduino,
				{Path: "/dev/ttyUSB3", VendorID: "unknown", Manufacturer: "HUAWEI Technology"},
			},
			wantPath:   "/dev/ttyUSB3",
			wantReason: ReasonVendorMatch,
		},
		{
			name: "model pattern match",
			candidates: []Candidate{
				arduino,
				{Path: "/dev/ttyUSB4", Model: "E3372 LTE stick"},
			},
			wantPath:   "/dev/ttyUSB4",
			wantReason: ReasonVendorMatch,
		},
		{
			name: "first match wins on discovery order",
			candidates: []Candidate{
				{Path: "/dev/ttyUSB0", VendorID: "12d1"},
				{Path: "/dev/ttyUSB1", VendorID: "12d1"},
			},
			wantPath:   "/dev/ttyUSB0",
			wantReason: ReasonVendorMatch,
		},
		{
			name:       "multiple devices with no match require manual config",
			candidates: []Candidate{arduino, ftdi},
			wantPath:   "",
			wantReason: ReasonManualRequired,
		},
		{
			name:       "no candidates",
			candidates: nil,
			wantPath:   "",
			wantReason: ReasonNoDevices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, reason := Select(tt.candidates, tt.configured)
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestSelectPrefersStableAlias(t *testing.T) {
	alias := "/dev/serial/by-id/usb-HUAWEI_Mobile-if00-port0"

	t.Run("vendor match uses alias", func(t *testing.T) {
		candidates := []Candidate{
			{Path: "/dev/ttyUSB1", VendorID: "0403"},
			{Path: "/dev/ttyUSB0", VendorID: "12d1", ByIDPath: alias},
		}
		path, reason := Select(candidates, "")
		if reason != ReasonVendorMatch {
			t.Fatalf("reason = %q", reason)
		}
		if path != alias {
			t.Errorf("path = %q, want alias %q", path, alias)
		}
	})

	t.Run("single candidate uses alias", func(t *testing.T) {
		path, _ := Select([]Candidate{{Path: "/dev/ttyUSB0", ByIDPath: alias}}, "")
		if path != alias {
			t.Errorf("path = %q, want alias %q", path, alias)
		}
	})
}

func TestReasonSelected(t *testing.T) {
	selected := []Reason{ReasonConfigured, ReasonSingle, ReasonVendorMatch}
	for _, r := range selected {
		if !r.Selected() {
			t.Errorf("%q should report selected", r)
		}
	}
	for _, r := range []Reason{ReasonManualRequired, ReasonNoDevices} {
		if r.Selected() {
			t.Errorf("%q should not report selected", r)
		}
	}
}

func TestIsModemVendor(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"by-id alias mentions huawei", Candidate{ByIDPath: "/dev/serial/by-id/usb-HUAWEI_Mobile-if00"}, true},
		{"vendor id", Candidate{VendorID: "12d1"}, true},
		{"vendor id uppercase", Candidate{VendorID: "12D1"}, true},
		{"manufacturer", Candidate{Manufacturer: "Huawei Technologies"}, true},
		{"model pattern", Candidate{Model: "Mobile Connect - Modem"}, true},
		{"unrelated device", Candidate{VendorID: "0403", Manufacturer: "FTDI", Model: "FT232R"}, false},
		{"empty metadata", Candidate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isModemVendor(tt.c); got != tt.want {
				t.Errorf("isModemVendor() = %v, want %v", got, tt.want)
			}
		})
	}
}
