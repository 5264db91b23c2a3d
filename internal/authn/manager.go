package authn

import (
	"context"
	"sync"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/storage"
)

// Refresher calls the backend to exchange the current token for a new one.
// Implemented by internal/backend.Client; defined here so this package does
// not need to import the HTTP client.
type Refresher interface {
	RefreshDeviceToken(ctx context.Context, deviceID, currentToken string) (string, error)
}

// Manager is the credential manager: it caches the current device token in
// memory, reloading from device.json on a cold cache, and refreshes it
// through the backend, rewriting device.json atomically on success.
//
// Reads take the read lock and only escalate to the write lock on a cache
// miss, so concurrent callers (the poller, the relay, the deployer) are
// never serialized behind each other for the common case of a warm cache.
type Manager struct {
	layout    storage.Layout
	refresher Refresher

	mu    sync.RWMutex
	token *Token
}

// NewManager returns a Manager rooted at layout, using refresher to talk to
// the backend. It does not touch disk until Current or Refresh is called.
func NewManager(layout storage.Layout, refresher Refresher) *Manager {
	return &Manager{layout: layout, refresher: refresher}
}

// Current returns the cached token, loading it from device.json on a cold
// start.
func (m *Manager) Current(ctx context.Context) (*Token, error) {
	m.mu.RLock()
	if m.token != nil {
		tok := m.token
		m.mu.RUnlock()
		return tok, nil
	}
	m.mu.RUnlock()

	return m.loadFromDisk()
}

func (m *Manager) loadFromDisk() (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have populated the cache while we waited for
	// the write lock.
	if m.token != nil {
		return m.token, nil
	}

	device, err := storage.AssertActivated(m.layout)
	if err != nil {
		return nil, err
	}

	tok := ParseToken(device.ID, device.Token)
	m.token = tok
	return tok, nil
}

// DeviceID returns the current token's device ID.
func (m *Manager) DeviceID(ctx context.Context) (string, error) {
	tok, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return tok.DeviceID(), nil
}

// Refresh exchanges the current token for a new one through the backend
// and atomically persists it to device.json before updating the in-memory
// cache, so a crash mid-refresh leaves the old, still-valid token on disk
// rather than a half-written file.
func (m *Manager) Refresh(ctx context.Context) (*Token, error) {
	log := alog.WithComponent("authn")

	current, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().Str("device_id", current.DeviceID()).Msg("refreshing device token")

	raw, err := m.refresher.RefreshDeviceToken(ctx, current.DeviceID(), current.Raw)
	if err != nil {
		return nil, agenterr.New(agenterr.KindToken, "refresh device token", err)
	}
	newToken := ParseToken(current.DeviceID(), raw)

	if err := m.persist(newToken); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.token = newToken
	m.mu.Unlock()

	log.Info().Time("expires_at", newToken.ExpiresAt()).Msg("token refreshed")
	return newToken, nil
}

func (m *Manager) persist(tok *Token) error {
	device, err := storage.LoadDevice(m.layout)
	if err != nil {
		return err
	}
	device.Token = tok.Raw
	return device.Save(m.layout)
}
