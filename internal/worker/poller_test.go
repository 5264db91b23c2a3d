package worker

import (
	"context"
	"errors"
	"testing"
)

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) TriggerSync(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestPoller_Tick_DelegatesToSyncer(t *testing.T) {
	s := &fakeSyncer{}
	p := NewPoller(s)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if s.calls != 1 {
		t.Errorf("syncer called %d times, want 1", s.calls)
	}
}

func TestPoller_Tick_PropagatesSyncError(t *testing.T) {
	s := &fakeSyncer{err: errors.New("sync failed")}
	p := NewPoller(s)

	if err := p.Tick(context.Background()); err == nil {
		t.Fatal("Tick() error = nil, want sync error propagated")
	}
}

func TestPoller_Name(t *testing.T) {
	if (&Poller{}).Name() != "poller" {
		t.Errorf("Name() = %q, want poller", (&Poller{}).Name())
	}
}
