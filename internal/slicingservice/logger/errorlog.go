package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorEntry is one record of the rolling error log. Only internal faults
// are recorded here; client-caused rejections never reach the log.
type ErrorEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Path      string    `json:"path,omitempty"`
}

// ErrorLog is a JSON file of ErrorEntry records with rolling retention.
// Every append rewrites the file with entries older than the retention
// window pruned, so the log never needs an external rotation job.
type ErrorLog struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	now       func() time.Time
}

// NewErrorLog creates the error log at path, keeping retentionDays days of
// history. The parent directory is created on first use.
func NewErrorLog(path string, retentionDays int) *ErrorLog {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &ErrorLog{
		path:      path,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Append records an internal error. Failures to persist are reported on the
// console; the request path must not fail because logging did.
func (l *ErrorLog) Append(errText, details, requestPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.readLocked()
	entries = append(entries, ErrorEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Error:     errText,
		Details:   details,
		Path:      requestPath,
	})
	l.writeLocked(l.pruneLocked(entries))
}

// Prune drops entries older than the retention window. Called periodically
// by the retention sweep in addition to the prune performed on each append.
func (l *ErrorLog) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLocked(l.pruneLocked(l.readLocked()))
}

// Entries returns a copy of the current log contents, newest last.
func (l *ErrorLog) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

func (l *ErrorLog) pruneLocked(entries []ErrorEntry) []ErrorEntry {
	cutoff := l.now().Add(-l.retention)
	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

func (l *ErrorLog) readLocked() []ErrorEntry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	var entries []ErrorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		LogWarning("error log is unreadable, starting a fresh file: " + err.Error())
		return nil
	}
	return entries
}

func (l *ErrorLog) writeLocked(entries []ErrorEntry) {
	if entries == nil {
		entries = []ErrorEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		LogError("marshal error log", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		LogError("create log directory", err)
		return
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		LogError("write error log", err)
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		LogError("replace error log", err)
	}
}
