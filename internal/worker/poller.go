package worker

import (
	"context"
	"time"
)

// Syncer is the subset of internal/syncer.Syncer the poller needs.
type Syncer interface {
	TriggerSync(ctx context.Context) error
}

// PollerOptions configures the poller worker's cadence.
type PollerOptions struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// DefaultPollerOptions matches the original's tuned defaults: poll every
// 30s, after an initial 5s settling delay.
func DefaultPollerOptions() PollerOptions {
	return PollerOptions{Interval: 30 * time.Second, InitialDelay: 5 * time.Second}
}

// Poller periodically triggers a workflow sync.
type Poller struct {
	syncer Syncer
}

// NewPoller returns a Poller driving syncer.
func NewPoller(syncer Syncer) *Poller { return &Poller{syncer: syncer} }

func (p *Poller) Name() string { return "poller" }

func (p *Poller) Tick(ctx context.Context) error {
	return p.syncer.TriggerSync(ctx)
}
