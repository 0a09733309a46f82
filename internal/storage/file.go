// Package storage provides fail-soft implementations of the session
// Persister contract: a JSON blob store and a SQLite store. Storage
// failures are logged and degraded to empty reads or dropped writes;
// they never propagate to the caller.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mstanton/ragline/internal/debug"
	"github.com/mstanton/ragline/internal/session"
)

// FileStore persists the session collection as one JSON blob: an
// ordered array of sessions, newest first.
type FileStore struct {
	path string
}

// NewFileStore creates a file store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the blob file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the persisted sessions. A missing file, unreadable file,
// or malformed blob yields an empty collection.
func (f *FileStore) Load() []*session.Session {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Error("storage", err, "reading session file")
		}
		return []*session.Session{}
	}

	var sessions []*session.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		debug.Error("storage", err, "decoding session file")
		return []*session.Session{}
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	return sessions
}

// Save writes the full collection, replacing any previous blob.
func (f *FileStore) Save(sessions []*session.Session) {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		debug.Error("storage", err, "encoding sessions")
		return
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		debug.Error("storage", err, "creating data directory")
		return
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		debug.Error("storage", err, "writing session file")
	}
}

// Clear removes the blob.
func (f *FileStore) Clear() {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		debug.Error("storage", err, "removing session file")
	}
}
