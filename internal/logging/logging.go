package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger writes one JSON object per line. Every entry carries "ts" in the
// configured location and a "level" derived from "status" when not set.
type Logger struct {
	mu  sync.Mutex
	enc *json.Encoder
	loc *time.Location
}

// New returns a Logger writing to w. A nil location means UTC.
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{enc: json.NewEncoder(w), loc: loc}
}

// Default returns a Logger writing to stdout in UTC.
func Default() *Logger {
	return New(os.Stdout, time.UTC)
}

// Log writes data as a single JSON line. The map is not modified.
func (l *Logger) Log(data map[string]any) {
	if l == nil {
		return
	}
	entry := make(map[string]any, len(data)+2)
	for k, v := range data {
		entry[k] = v
	}
	entry["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	if _, ok := entry["level"]; !ok {
		if entry["status"] == "error" {
			entry["level"] = "error"
		} else {
			entry["level"] = "info"
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(entry)
}

// Location returns the time zone used for timestamps.
func (l *Logger) Location() *time.Location {
	if l == nil {
		return time.UTC
	}
	return l.loc
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
