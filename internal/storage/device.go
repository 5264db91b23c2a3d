package storage

import (
	"os"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
)

// Device is the persisted record of this agent's registration with the
// backend: who owns it, what it authenticates as, and when it last talked
// to the backend. Written to device.json with 0600 permissions since Token
// grants API access on the device's behalf.
type Device struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	OwnerID      string            `json:"owner_id"`
	Token        string            `json:"token"`
	DeviceType   string            `json:"device_type"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ActivatedAt  time.Time         `json:"activated_at"`
	LastSyncAt   *time.Time        `json:"last_sync_at,omitempty"`
}

// LoadDevice reads device.json from layout. A missing file is reported as
// KindDeviceNotActivated so callers can distinguish "not installed yet"
// from a genuine I/O failure.
func LoadDevice(l Layout) (*Device, error) {
	f := NewFile(l.DeviceFile())
	if !f.Exists() {
		return nil, agenterr.New(agenterr.KindDeviceNotActivated, "device has not been activated", nil)
	}
	var d Device
	if err := f.ReadJSON(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save atomically persists the device record.
func (d *Device) Save(l Layout) error {
	return NewFile(l.DeviceFile()).WriteJSONAtomic(d, 0o600)
}

// AssertActivated is a convenience guard used at the top of operations that
// require a registered device (polling, syncing, deploying).
func AssertActivated(l Layout) (*Device, error) {
	d, err := LoadDevice(l)
	if err != nil {
		return nil, err
	}
	if d.Token == "" {
		return nil, agenterr.New(agenterr.KindDeviceNotActivated, "device record has no token", nil)
	}
	return d, nil
}

// TouchLastSync updates LastSyncAt to now and persists the change.
func (d *Device) TouchLastSync(l Layout) error {
	now := time.Now()
	d.LastSyncAt = &now
	return d.Save(l)
}

// DeviceFileMode is the permission bits device.json is written with.
const DeviceFileMode = os.FileMode(0o600)
