// Package storage implements the agent's on-disk persisted state layout:
// device.json, settings.json, and the cache/deployments/logs/tokens
// directory tree under a configurable base directory (default /etc/ajime
// on Linux).
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
)

// File is a thin wrapper around a path that knows how to read/write JSON,
// including an atomic rename-from-tempfile write used for device.json so an
// external observer never sees a partial file.
type File struct {
	path string
}

// NewFile returns a File wrapping path.
func NewFile(path string) *File { return &File{path: path} }

// Path returns the underlying filesystem path.
func (f *File) Path() string { return f.path }

// Exists reports whether the file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// ReadJSON decodes the file's contents into v.
func (f *File) ReadJSON(v interface{}) error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return agenterr.New(agenterr.KindIO, "read "+f.path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return agenterr.New(agenterr.KindSerialization, "decode "+f.path, err)
	}
	return nil
}

// WriteJSON serializes v as pretty JSON and writes it non-atomically,
// creating parent directories as needed. Used for files where partial
// writes are acceptable (e.g. first-time settings.json creation during
// install).
func (f *File) WriteJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return agenterr.New(agenterr.KindSerialization, "encode "+f.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return agenterr.New(agenterr.KindIO, "mkdir for "+f.path, err)
	}
	if err := os.WriteFile(f.path, b, 0o644); err != nil {
		return agenterr.New(agenterr.KindIO, "write "+f.path, err)
	}
	return nil
}

// WriteJSONAtomic serializes v as pretty JSON and writes it via a
// temp-file-then-rename so readers never observe a partial file. mode sets
// the final file's permission bits (e.g. 0600 for device.json).
func (f *File) WriteJSONAtomic(v interface{}, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return agenterr.New(agenterr.KindSerialization, "encode "+f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return agenterr.New(agenterr.KindIO, "mkdir for "+f.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return agenterr.New(agenterr.KindIO, "create temp file for "+f.path, err)
	}
	tmpPath := tmp.Name()
	// On any early return, best-effort remove the leftover temp file.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return agenterr.New(agenterr.KindIO, "write temp file for "+f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return agenterr.New(agenterr.KindIO, "sync temp file for "+f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return agenterr.New(agenterr.KindIO, "close temp file for "+f.path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return agenterr.New(agenterr.KindIO, "chmod temp file for "+f.path, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return agenterr.New(agenterr.KindIO, "rename into "+f.path, err)
	}
	success = true
	return nil
}
