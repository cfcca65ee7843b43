package logging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arloliu/opcsub/types"
)

// Entry is one record captured by a Recorder.
type Entry struct {
	Level         string
	Message       string
	KeysAndValues []any
}

// Value returns the value logged under key, or nil.
func (e Entry) Value(key string) any {
	for i := 0; i+1 < len(e.KeysAndValues); i += 2 {
		if k, ok := e.KeysAndValues[i].(string); ok && k == key {
			return e.KeysAndValues[i+1]
		}
	}

	return nil
}

// Recorder is a types.Logger that keeps every record in memory.
//
// Tests use it to assert on diagnostics such as the sync summary line or
// dropped-notification debug logs. An optional sink (typically testing.T.Logf)
// mirrors records to test output.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	sink    func(format string, args ...any)
}

// Compile-time assertion that Recorder implements Logger.
var _ types.Logger = (*Recorder)(nil)

// NewRecorder creates an in-memory logger.
//
// Parameters:
//   - sink: Optional printf-style mirror (for example t.Logf); nil disables mirroring
func NewRecorder(sink func(format string, args ...any)) *Recorder {
	return &Recorder{sink: sink}
}

// Entries returns a copy of the captured records.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Find returns the captured records with the given message.
func (r *Recorder) Find(msg string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}

	return out
}

// Debug records a debug-level message.
func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.record("DEBUG", msg, keysAndValues) }

// Info records an info-level message.
func (r *Recorder) Info(msg string, keysAndValues ...any) { r.record("INFO", msg, keysAndValues) }

// Warn records a warning-level message.
func (r *Recorder) Warn(msg string, keysAndValues ...any) { r.record("WARN", msg, keysAndValues) }

// Error records an error-level message.
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.record("ERROR", msg, keysAndValues) }

// Fatal records a fatal-level message without exiting.
func (r *Recorder) Fatal(msg string, keysAndValues ...any) { r.record("FATAL", msg, keysAndValues) }

func (r *Recorder) record(level, msg string, keysAndValues []any) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, KeysAndValues: keysAndValues})
	r.mu.Unlock()

	if r.sink != nil {
		r.sink("%s: %s %s", level, msg, formatKeyValues(keysAndValues))
	}
}

func formatKeyValues(keysAndValues []any) string {
	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing>", keysAndValues[i])
		}
	}

	return b.String()
}
