package relay

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
)

// FileEntry is one file or directory listed by listDirectory.
type FileEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	Modified *int64 `json:"modified,omitempty"`
}

// listDirectory lists path's contents, directories first then files, both
// alphabetically.
func listDirectory(path string) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, agenterr.New(agenterr.KindIO, "list directory "+path, err)
	}

	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, agenterr.New(agenterr.KindIO, "stat "+e.Name(), err)
		}
		var modified *int64
		if t := info.ModTime().Unix(); t > 0 {
			modified = &t
		}
		size := info.Size()
		if info.IsDir() {
			size = 0
		}
		out = append(out, FileEntry{
			Name:     e.Name(),
			Path:     filepath.Join(path, e.Name()),
			IsDir:    info.IsDir(),
			Size:     size,
			Modified: modified,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// readFileBase64 reads path and returns its contents base64-encoded, so the
// bytes can be embedded in a relay JSON message.
func readFileBase64(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", agenterr.New(agenterr.KindIO, "read file "+path, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// writeFileBase64 decodes contentB64 and writes it to path, creating parent
// directories as needed.
func writeFileBase64(path, contentB64 string) error {
	b, err := base64.StdEncoding.DecodeString(contentB64)
	if err != nil {
		return agenterr.New(agenterr.KindValidation, "invalid base64 content for "+path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return agenterr.New(agenterr.KindIO, "create parent directory for "+path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return agenterr.New(agenterr.KindIO, "write file "+path, err)
	}
	return nil
}

// deletePath removes path, recursively if it is a directory.
func deletePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return agenterr.New(agenterr.KindIO, "stat "+path, err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return agenterr.New(agenterr.KindIO, "remove directory "+path, err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return agenterr.New(agenterr.KindIO, "remove file "+path, err)
	}
	return nil
}
