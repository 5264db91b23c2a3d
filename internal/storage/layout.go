package storage

import (
	"os"
	"path/filepath"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
)

// DefaultBaseDir is the agent's persisted-state root on a production install.
const DefaultBaseDir = "/etc/ajime"

// Layout resolves the well-known paths under a base directory.
type Layout struct {
	Base string
}

// NewLayout returns a Layout rooted at base. An empty base falls back to
// DefaultBaseDir.
func NewLayout(base string) Layout {
	if base == "" {
		base = DefaultBaseDir
	}
	return Layout{Base: base}
}

func (l Layout) DeviceFile() string   { return filepath.Join(l.Base, "device.json") }
func (l Layout) SettingsFile() string { return filepath.Join(l.Base, "settings.json") }

func (l Layout) CacheDir() string       { return filepath.Join(l.Base, "cache") }
func (l Layout) WorkflowCacheDir() string { return filepath.Join(l.CacheDir(), "workflows") }
func (l Layout) ConfigCacheDir() string   { return filepath.Join(l.CacheDir(), "configs") }
func (l Layout) DeploymentsDir() string   { return filepath.Join(l.Base, "deployments") }
func (l Layout) LogsDir() string          { return filepath.Join(l.Base, "logs") }
func (l Layout) TokensDir() string        { return filepath.Join(l.Base, "tokens") }

// EnsureDirs creates the full directory tree the agent expects to exist,
// matching the original's install-time layout setup.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		l.Base,
		l.WorkflowCacheDir(),
		l.ConfigCacheDir(),
		l.DeploymentsDir(),
		l.LogsDir(),
		l.TokensDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return agenterr.New(agenterr.KindIO, "create directory "+d, err)
		}
	}
	return nil
}
