// Package worker provides the shared interval-driven run loop used by the
// poller and token-refresh background workers.
package worker

import (
	"context"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// Runner is a single tick of periodic work. Tick errors are logged by
// Drive, not returned to the caller — a failed tick should not stop the
// worker from trying again on the next interval.
type Runner interface {
	Name() string
	Tick(ctx context.Context) error
}

// Drive runs r.Tick on every interval tick until shutdown is closed or ctx
// is done. If initialDelay is positive, Drive first waits that long; the
// first tick then comes one full interval later, never immediately.
func Drive(ctx context.Context, r Runner, interval, initialDelay time.Duration, shutdown <-chan struct{}) {
	log := alog.WithComponent(r.Name())
	log.Info().Msg("worker starting")

	if initialDelay > 0 {
		select {
		case <-time.After(initialDelay):
		case <-shutdown:
			log.Info().Msg("worker shutting down during initial delay")
			return
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			log.Info().Msg("worker shutting down")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("tick failed")
			}
		}
	}
}
