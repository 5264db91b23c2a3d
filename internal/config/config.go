// Package config resolves the agent's runtime options: settings.json on
// disk (via internal/storage) plus the lifecycle/server/cache tuning knobs
// that aren't persisted and default the same way on every run.
package config

import (
	"time"

	"github.com/ajime-dev/ajime-agent/internal/storage"
)

// LifecycleOptions controls how long a non-persistent agent run stays alive
// and how long shutdown is allowed to take before being forced.
type LifecycleOptions struct {
	IsPersistent            bool
	IdleTimeout             time.Duration
	IdleTimeoutPollInterval time.Duration
	MaxRuntime              time.Duration
	MaxShutdownDelay        time.Duration
}

// DefaultLifecycleOptions matches the original's persistent-service
// defaults: five minute idle timeout, one hour max runtime, 30s shutdown
// grace period.
func DefaultLifecycleOptions() LifecycleOptions {
	return LifecycleOptions{
		IsPersistent:            true,
		IdleTimeout:             5 * time.Minute,
		IdleTimeoutPollInterval: 10 * time.Second,
		MaxRuntime:              time.Hour,
		MaxShutdownDelay:        30 * time.Second,
	}
}

// ServerOptions configures the local diagnostic HTTP server.
type ServerOptions struct {
	Host string
	Port uint16
}

// DefaultServerOptions binds to loopback only, matching the original.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{Host: "127.0.0.1", Port: 8080}
}

// CacheCapacities bounds the in-memory caches the agent keeps.
type CacheCapacities struct {
	Workflows int
}

// DefaultCacheCapacities matches the original's 100-entry workflow cache.
func DefaultCacheCapacities() CacheCapacities {
	return CacheCapacities{Workflows: 100}
}

// Options is the fully-resolved runtime configuration: persisted settings
// plus the lifecycle/server/cache defaults layered on top.
type Options struct {
	Settings storage.Settings
	Lifecycle LifecycleOptions
	Server    ServerOptions
	Caches    CacheCapacities
}

// Load reads settings.json through layout (applying documented defaults for
// missing fields, per internal/storage.LoadSettings) and layers the
// lifecycle/server/cache defaults on top. Lifecycle.IsPersistent is taken
// from the persisted setting so an installed service and an ad hoc run can
// differ without code changes.
func Load(layout storage.Layout) (Options, error) {
	settings, err := storage.LoadSettings(layout)
	if err != nil {
		return Options{}, err
	}

	lifecycle := DefaultLifecycleOptions()
	lifecycle.IsPersistent = settings.IsPersistent

	return Options{
		Settings:  settings,
		Lifecycle: lifecycle,
		Server:    DefaultServerOptions(),
		Caches:    DefaultCacheCapacities(),
	}, nil
}
