package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_RepoTuningMatchesDefaults(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Defaults(), c); diff != "" {
		t.Fatalf("repo tuning drifted from defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.TickInterval() != 50*time.Millisecond {
		t.Fatalf("tick interval: %v", c.TickInterval())
	}
}

func TestLoad_Overrides(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "tick_rate_hz: 10\nnetwork:\n  lag_min_ms: 20\n  lag_max_ms: 80\n  outbound_queue: 4\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	lo, hi := c.Network.LagBounds()
	if lo != 20*time.Millisecond || hi != 80*time.Millisecond {
		t.Fatalf("lag bounds: %v %v", lo, hi)
	}
	if c.Network.HandshakeTimeoutMs != 5000 {
		t.Fatalf("unset field lost its default: %d", c.Network.HandshakeTimeoutMs)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []string{
		"tick_rate_hz: 0\n",
		"network:\n  lag_min_ms: 50\n  lag_max_ms: 10\n",
		"power:\n  wire_thickness: -1\n",
		"world: [1, 2]\n",
	}
	for _, body := range cases {
		p := filepath.Join(t.TempDir(), "tuning.yaml")
		_ = os.WriteFile(p, []byte(body), 0o644)
		if _, err := Load(p); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
