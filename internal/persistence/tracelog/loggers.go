package tracelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"oreinfinium.net/internal/client"
	"oreinfinium.net/internal/server"
)

// TickLogger writes one server tick summary per line (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(v server.TickTrace) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                       { return l.w.Close() }

// DispatchLogger writes the client's per-tick dispatch counts (compressed).
type DispatchLogger struct{ w *JSONLZstdWriter }

func NewDispatchLogger(dataDir string) *DispatchLogger {
	return &DispatchLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "dispatch"), "dispatch")}
}

func (l *DispatchLogger) WriteDispatch(v client.DispatchTrace) error { return l.w.Write(v) }
func (l *DispatchLogger) Close() error                               { return l.w.Close() }

// ReadFile decodes every line of a closed .jsonl.zst file.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []T
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}
