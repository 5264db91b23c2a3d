// Package supervisor wires the agent's background workers to its shared
// application state and drives their startup, run, and ordered shutdown,
// matching the original's ShutdownManager/AppState split.
package supervisor

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/config"
	"github.com/ajime-dev/ajime-agent/internal/deploy"
	"github.com/ajime-dev/ajime-agent/internal/relay"
	"github.com/ajime-dev/ajime-agent/internal/storage"
	"github.com/ajime-dev/ajime-agent/internal/telemetry"
	"github.com/ajime-dev/ajime-agent/internal/worker"
)

// deployerRunner adapts *deploy.Deployer to worker.Runner so it can share
// the poller's interval-driven Drive loop.
type deployerRunner struct{ d *deploy.Deployer }

func (r deployerRunner) Name() string { return "deployer" }
func (r deployerRunner) Tick(ctx context.Context) error { return r.d.PollAndExecute(ctx) }

// DefaultDeployerInterval matches the poller's cadence; the original polls
// deployments on the same tick budget as workflow sync.
const DefaultDeployerInterval = 30 * time.Second

// Supervisor owns the agent's application state and background workers,
// launching them in a fixed order and, on shutdown, joining them in the
// order token refresh, poller, relay, deployer, diagnostic server.
type Supervisor struct {
	state   *AppState
	options config.Options

	shutdown chan struct{}
	once     sync.Once

	// done channels are write-once: Start populates exactly one per
	// enabled worker, and shutdown() joins them in a fixed order.
	tokenRefreshDone chan struct{}
	pollerDone       chan struct{}
	deployerDone     chan struct{}
	relayDone        chan struct{}
	diagServerDone   chan struct{}

}

// Stopper is implemented by internal/diagserver.Server.
type Stopper interface {
	Serve(shutdown <-chan struct{}) <-chan struct{}
}

// New builds a Supervisor from resolved options, constructing the shared
// application state (backend client, credential manager, workflow cache,
// syncer) but launching no workers yet.
func New(agentVersion string, opts config.Options, layoutBase string) *Supervisor {
	layout := storage.NewLayout(layoutBase)
	state := NewAppState(agentVersion, layout, opts)
	return &Supervisor{
		state:    state,
		options:  opts,
		shutdown: make(chan struct{}),
	}
}

// State returns the supervisor's shared application state, e.g. for wiring
// into the diagnostic server.
func (s *Supervisor) State() *AppState { return s.state }

// Start launches the agent's workers in the original's init order: token
// refresh first, then the optional diagnostic server, poller, relay, and
// deployer. The token-refresh worker's first check runs one CheckInterval
// after Start, not at launch.
func (s *Supervisor) Start(ctx context.Context, diagServer Stopper) {
	log := alog.WithComponent("supervisor")
	log.Info().Msg("starting workers")

	tr := worker.NewTokenRefreshWorker(s.state.Tokens, worker.DefaultTokenRefreshOptions().RefreshThreshold)
	s.tokenRefreshDone = s.driveWorker(ctx, tr, worker.DefaultTokenRefreshOptions().CheckInterval, 0)

	if s.options.Settings.EnableSocketServer && diagServer != nil {
		s.diagServerDone = make(chan struct{})
		done := diagServer.Serve(s.shutdown)
		go func() {
			<-done
			close(s.diagServerDone)
		}()
	}

	if s.options.Settings.EnablePoller {
		pollerOpts := worker.DefaultPollerOptions()
		pollerOpts.Interval = time.Duration(s.options.Settings.PollingIntervalSecs) * time.Second
		p := worker.NewPoller(s.state.Syncer)
		s.pollerDone = s.driveWorker(ctx, p, pollerOpts.Interval, pollerOpts.InitialDelay)
	}

	relayClient := relay.New(s.options.Settings.Backend.BaseURL, s.state.Tokens, relay.CommandRunners{})
	s.relayDone = make(chan struct{})
	go func() {
		defer close(s.relayDone)
		relayClient.Run(ctx, s.shutdown)
	}()

	deployer := deploy.New(s.state.Backend, s.state.Tokens, s.state.Layout.DeploymentsDir(), s.registryCredentials())
	s.deployerDone = s.driveWorker(ctx, deployerRunner{d: deployer}, DefaultDeployerInterval, 5*time.Second)

	telemetry.UpdateComponent("supervisor", true, "")
}

// registryCredentials converts the operator-configured registry table from
// settings.json into the form the deployer expects.
func (s *Supervisor) registryCredentials() []deploy.RegistryCredential {
	settingsRegistries := s.options.Settings.Registries
	if len(settingsRegistries) == 0 {
		return nil
	}
	out := make([]deploy.RegistryCredential, len(settingsRegistries))
	for i, r := range settingsRegistries {
		out[i] = deploy.RegistryCredential{HostPrefix: r.HostPrefix, Username: r.Username, Password: r.Password}
	}
	return out
}

// driveWorker launches r on worker.Drive in its own goroutine and returns a
// channel closed when it returns (on shutdown or context cancellation).
func (s *Supervisor) driveWorker(ctx context.Context, r worker.Runner, interval, initialDelay time.Duration) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Drive(ctx, r, interval, initialDelay, s.shutdown)
	}()
	return done
}

// AwaitLifecycle blocks until shutdownSignal fires, or — in non-persistent
// mode — until the agent has been idle past its configured timeout or has
// exceeded its max runtime.
func (s *Supervisor) AwaitLifecycle(ctx context.Context, shutdownSignal <-chan struct{}) {
	log := alog.WithComponent("supervisor")
	lc := s.options.Lifecycle

	if lc.IsPersistent {
		select {
		case <-shutdownSignal:
			log.Info().Msg("shutdown signal received")
		case <-ctx.Done():
		}
		return
	}

	idleTicker := time.NewTicker(lc.IdleTimeoutPollInterval)
	defer idleTicker.Stop()
	maxRuntime := time.NewTimer(lc.MaxRuntime)
	defer maxRuntime.Stop()

	for {
		select {
		case <-shutdownSignal:
			log.Info().Msg("shutdown signal received")
			return
		case <-ctx.Done():
			return
		case <-maxRuntime.C:
			log.Info().Dur("max_runtime", lc.MaxRuntime).Msg("max runtime reached, shutting down")
			return
		case <-idleTicker.C:
			if s.state.Activity.IdleFor() > lc.IdleTimeout {
				log.Info().Dur("idle_timeout", lc.IdleTimeout).Msg("idle timeout reached, shutting down")
				return
			}
		}
	}
}

// Shutdown closes the shutdown channel and joins every launched worker in
// the order token refresh, poller, relay, deployer, diagnostic server,
// forcing the process to exit if the configured grace period is exceeded.
func (s *Supervisor) Shutdown() {
	log := alog.WithComponent("supervisor")
	log.Info().Msg("shutting down")

	s.once.Do(func() { close(s.shutdown) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.joinInOrder()
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-time.After(s.options.Lifecycle.MaxShutdownDelay):
		log.Error().Dur("max_shutdown_delay", s.options.Lifecycle.MaxShutdownDelay).
			Msg("shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func (s *Supervisor) joinInOrder() {
	for _, ch := range []chan struct{}{
		s.tokenRefreshDone,
		s.pollerDone,
		s.relayDone,
		s.deployerDone,
		s.diagServerDone,
	} {
		if ch == nil {
			continue
		}
		<-ch
	}
}
