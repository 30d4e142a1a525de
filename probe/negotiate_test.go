package probe_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"i4.energy/across/smsbridge/probe"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProber succeeds for the listed connection labels and fails for
// everything else, recording trial order.
type scriptedProber struct {
	succeed map[string]bool
	tried   []string
}

func (p *scriptedProber) Probe(_ context.Context, device string, profile probe.Profile) probe.Result {
	p.tried = append(p.tried, profile.Connection)
	r := probe.Result{
		Profile:    profile,
		DevicePath: device,
		Timestamp:  time.Now().UTC(),
	}
	if p.succeed[profile.Connection] {
		r.Success = true
	} else {
		r.ErrorDetail = "identify failed: no response"
	}
	return r
}

func TestNegotiate(t *testing.T) {
	profiles := probe.DefaultProfiles

	t.Run("middle profile succeeds", func(t *testing.T) {
		// A fails, B succeeds, C fails: chosen must be B and the trail
		// must still cover all three in order.
		prober := &scriptedProber{succeed: map[string]bool{"at9600": true}}

		outcome := probe.Negotiate(context.Background(), prober, "/dev/ttyUSB0", profiles, testLogger())

		if outcome.Chosen == nil || outcome.Chosen.Label != "at9600" {
			t.Fatalf("chosen = %+v, want at9600", outcome.Chosen)
		}
		if outcome.AllFailed {
			t.Error("AllFailed should be false")
		}
		if len(outcome.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(outcome.Results))
		}
		wantOrder := []string{"at115200", "at9600", "at"}
		for i, conn := range wantOrder {
			if prober.tried[i] != conn {
				t.Errorf("trial %d = %q, want %q", i, prober.tried[i], conn)
			}
			if outcome.Results[i].Profile.Connection != conn {
				t.Errorf("result %d = %q, want %q", i, outcome.Results[i].Profile.Connection, conn)
			}
		}
	})

	t.Run("first success wins over a later one", func(t *testing.T) {
		prober := &scriptedProber{succeed: map[string]bool{"at115200": true, "at": true}}

		outcome := probe.Negotiate(context.Background(), prober, "/dev/ttyUSB0", profiles, testLogger())

		if outcome.Chosen == nil || outcome.Chosen.Label != "at115200" {
			t.Errorf("chosen = %+v, want at115200", outcome.Chosen)
		}
		if len(outcome.Results) != 3 {
			t.Errorf("all profiles must still be probed, got %d results", len(outcome.Results))
		}
	})

	t.Run("all failed", func(t *testing.T) {
		prober := &scriptedProber{}

		outcome := probe.Negotiate(context.Background(), prober, "/dev/ttyUSB0", profiles, testLogger())

		if outcome.Chosen != nil {
			t.Errorf("chosen = %+v, want nil", outcome.Chosen)
		}
		if !outcome.AllFailed {
			t.Error("AllFailed should be true")
		}
	})

	t.Run("sections follow the rc naming", func(t *testing.T) {
		prober := &scriptedProber{}
		outcome := probe.Negotiate(context.Background(), prober, "/dev/ttyUSB0", profiles, testLogger())

		want := []string{"gammu", "gammu1", "gammu2"}
		for i, w := range want {
			if outcome.Results[i].Section != w {
				t.Errorf("section %d = %q, want %q", i, outcome.Results[i].Section, w)
			}
		}
	})
}

func TestOutcomeConnections(t *testing.T) {
	catalogue := probe.DefaultProfiles

	t.Run("chosen profile leads, rest become fallbacks", func(t *testing.T) {
		chosen := catalogue[1] // at9600
		o := probe.Outcome{Chosen: &chosen}
		got := o.Connections(catalogue)
		want := []string{"at9600", "at115200", "at"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("connections[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("all failed keeps catalogue order", func(t *testing.T) {
		o := probe.Outcome{AllFailed: true}
		got := o.Connections(catalogue)
		want := []string{"at115200", "at9600", "at"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("connections[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestOutcomeSave(t *testing.T) {
	chosen := probe.DefaultProfiles[0]
	o := probe.Outcome{
		Timestamp:       time.Now().UTC(),
		Device:          "/dev/ttyUSB0",
		Chosen:          &chosen,
		SelectionReason: "single device auto-detected",
		Results: []probe.Result{
			{Profile: chosen, Section: "gammu", Success: true, Timestamp: time.Now().UTC()},
		},
	}

	path := filepath.Join(t.TempDir(), "data", "sms_gateway_diagnostics.json")
	if err := o.Save(path); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("diagnostics artifact is not valid JSON: %v", err)
	}
	if got["device"] != "/dev/ttyUSB0" {
		t.Errorf("device = %v", got["device"])
	}
	if got["all_failed"] != false {
		t.Errorf("all_failed = %v", got["all_failed"])
	}
	if _, ok := got["tested_connections"].([]any); !ok {
		t.Errorf("tested_connections missing or wrong type: %v", got["tested_connections"])
	}
}
