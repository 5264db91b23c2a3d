package supervisor

import (
	"testing"

	"github.com/ajime-dev/ajime-agent/internal/config"
	"github.com/ajime-dev/ajime-agent/internal/storage"
)

func TestNewAppState_WiresComponents(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	opts := config.Options{
		Settings: storage.DefaultSettings(),
		Caches:   config.CacheCapacities{Workflows: 10},
	}

	state := NewAppState("1.0.0", layout, opts)

	if state.AgentVersion != "1.0.0" {
		t.Errorf("AgentVersion = %q", state.AgentVersion)
	}
	if state.Backend == nil || state.Tokens == nil || state.Workflows == nil || state.Syncer == nil || state.Activity == nil {
		t.Fatalf("NewAppState left a component nil: %+v", state)
	}
	if state.Activity.IdleFor() < 0 {
		t.Error("Activity.IdleFor() < 0 immediately after construction")
	}
}

func TestActivityTracker_TouchResetsIdleFor(t *testing.T) {
	tracker := NewActivityTracker()
	first := tracker.LastTouched()

	tracker.Touch()
	if tracker.LastTouched() < first {
		t.Error("LastTouched() went backwards after Touch()")
	}
	if tracker.IdleFor() > 1_000_000_000 {
		t.Errorf("IdleFor() = %v, want near zero right after Touch()", tracker.IdleFor())
	}
}
