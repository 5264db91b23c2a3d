package supervisor

import (
	"github.com/ajime-dev/ajime-agent/internal/authn"
	"github.com/ajime-dev/ajime-agent/internal/backend"
	"github.com/ajime-dev/ajime-agent/internal/config"
	"github.com/ajime-dev/ajime-agent/internal/storage"
	"github.com/ajime-dev/ajime-agent/internal/syncer"
	"github.com/ajime-dev/ajime-agent/internal/workflow"
)

// AppState is the set of long-lived components every worker is built from:
// the backend client, credential manager, workflow cache, syncer, and the
// activity tracker the diagnostic server touches on every request except
// /health and /version.
type AppState struct {
	AgentVersion string
	Layout       storage.Layout
	Backend      *backend.Client
	Tokens       *authn.Manager
	Workflows    *workflow.Cache
	Syncer       *syncer.Syncer
	Activity     *ActivityTracker
}

// NewAppState wires the long-lived components together from resolved
// options, matching the original's AppState::init construction order:
// credential manager, then caches, then syncer on top of both.
func NewAppState(agentVersion string, layout storage.Layout, opts config.Options) *AppState {
	client := backend.New(opts.Settings.Backend.BaseURL)
	tokens := authn.NewManager(layout, client)
	workflows := workflow.NewCache(opts.Caches.Workflows)
	sync := syncer.New(client, tokens, workflows)

	return &AppState{
		AgentVersion: agentVersion,
		Layout:       layout,
		Backend:      client,
		Tokens:       tokens,
		Workflows:    workflows,
		Syncer:       sync,
		Activity:     NewActivityTracker(),
	}
}
