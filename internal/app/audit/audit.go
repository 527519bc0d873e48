// Package audit keeps a bounded in-memory trail of mutating API calls
// with optional JSONL persistence.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Entry records one mutating API call.
type Entry struct {
	Time       time.Time `json:"time"`
	Actor      string    `json:"actor,omitempty"`
	Role       string    `json:"role,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	Status     int       `json:"status"`
	TraceID    string    `json:"trace_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// Sink receives entries for persistence.
type Sink interface {
	Write(entry Entry) error
}

// DefaultMax bounds the ring when no explicit size is given.
const DefaultMax = 200

// Log is a fixed-size ring of recent entries.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	sink    Sink
}

// NewLog creates a ring holding up to max entries. Sink may be nil.
func NewLog(max int, sink Sink) *Log {
	if max <= 0 {
		max = DefaultMax
	}
	return &Log{max: max, sink: sink}
}

// Add records an entry, stamping Time when zero.
func (l *Log) Add(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; never impacts the request path.
		_ = l.sink.Write(entry)
	}
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(limit int) []Entry {
	if limit <= 0 || limit > l.max {
		limit = l.max
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Query returns up to limit entries whose serialized field equals
// value exactly, newest first. Field is a gjson path into the entry
// ("actor", "action", "status", ...).
func (l *Log) Query(field, value string, limit int) []Entry {
	if field == "" {
		return l.Recent(limit)
	}
	if limit <= 0 || limit > l.max {
		limit = l.max
	}

	l.mu.Lock()
	snapshot := make([]Entry, len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	out := make([]Entry, 0, limit)
	for i := len(snapshot) - 1; i >= 0 && len(out) < limit; i-- {
		b, err := json.Marshal(snapshot[i])
		if err != nil {
			continue
		}
		if gjson.GetBytes(b, field).String() == value {
			out = append(out, snapshot[i])
		}
	}
	return out
}

// FileSink appends entries to a file as JSON lines.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the JSONL file at path. An empty
// path yields a nil sink.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(entry Entry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
