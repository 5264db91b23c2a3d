package authn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/storage"
)

type fakeRefresher struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (f *fakeRefresher) RefreshDeviceToken(ctx context.Context, deviceID, currentToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func seedDevice(t *testing.T, layout storage.Layout, deviceID, token string) {
	t.Helper()
	d := &storage.Device{ID: deviceID, Token: token, ActivatedAt: time.Now()}
	if err := d.Save(layout); err != nil {
		t.Fatalf("seed device Save() error = %v", err)
	}
}

func TestManager_Current_ColdStartLoadsFromDisk(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	seedDevice(t, layout, "dev-1", "bare-secret-token")

	m := NewManager(layout, &fakeRefresher{})
	tok, err := m.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if tok.DeviceID() != "dev-1" {
		t.Errorf("Current() device id = %q, want dev-1", tok.DeviceID())
	}
}

func TestManager_Current_NotActivated(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	m := NewManager(layout, &fakeRefresher{})

	_, err := m.Current(context.Background())
	if !agenterr.Is(err, agenterr.KindDeviceNotActivated) {
		t.Errorf("Current() error = %v, want device_not_activated", err)
	}
}

func TestManager_Refresh_PersistsAtomicallyAndUpdatesCache(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	seedDevice(t, layout, "dev-2", "old-secret")

	refresher := &fakeRefresher{response: "new-secret"}
	m := NewManager(layout, refresher)

	tok, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.Raw != "new-secret" {
		t.Errorf("Refresh() raw = %q, want new-secret", tok.Raw)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want 1", refresher.calls)
	}

	cached, err := m.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cached.Raw != "new-secret" {
		t.Errorf("Current() after Refresh() raw = %q, want new-secret", cached.Raw)
	}

	onDisk, err := storage.LoadDevice(layout)
	if err != nil {
		t.Fatalf("LoadDevice() error = %v", err)
	}
	if onDisk.Token != "new-secret" {
		t.Errorf("device.json token = %q, want new-secret", onDisk.Token)
	}
}

func TestManager_Refresh_PropagatesBackendError(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	seedDevice(t, layout, "dev-3", "token")

	refresher := &fakeRefresher{err: agenterr.New(agenterr.KindHTTP, "connection refused", nil)}
	m := NewManager(layout, refresher)

	_, err := m.Refresh(context.Background())
	if !agenterr.Is(err, agenterr.KindToken) {
		t.Errorf("Refresh() error = %v, want kind token", err)
	}
}

func TestManager_Current_ConcurrentReadsDoNotRace(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	seedDevice(t, layout, "dev-4", "token")
	m := NewManager(layout, &fakeRefresher{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Current(context.Background()); err != nil {
				t.Errorf("Current() error = %v", err)
			}
		}()
	}
	wg.Wait()
}
