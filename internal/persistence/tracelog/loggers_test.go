package tracelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oreinfinium.net/internal/client"
	"oreinfinium.net/internal/server"
)

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	want := []server.TickTrace{
		{Tick: 1, Sessions: 1, Joins: []uint64{1}, Received: map[string]int{"INITIAL_CLIENT_DATA": 1}},
		{Tick: 2, Sessions: 0, Leaves: []uint64{1}, Kicks: []server.KickTrace{{Session: 1, Reason: "SLOW_CONSUMER"}}},
	}
	for _, v := range want {
		if err := l.WriteTick(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "ticks", "ticks-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files: %v %v", files, err)
	}
	got, err := ReadFile[server.TickTrace](files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ticks (-want +got):\n%s", diff)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "dispatch")
	at := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	if err := w.Write(client.DispatchTrace{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(client.DispatchTrace{Tick: 2, Error: "desync"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for hour, tick := range map[string]uint64{"2026-03-01-10": 1, "2026-03-01-11": 2} {
		path := filepath.Join(dir, "dispatch-"+hour+".jsonl.zst")
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
		got, err := ReadFile[client.DispatchTrace](path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if len(got) != 1 || got[0].Tick != tick {
			t.Fatalf("%s: %+v", hour, got)
		}
	}
}
