// Package syncer reconciles the device's cached workflows against the
// backend: it reports what it already has by digest and caches back
// whatever the backend says changed, backing off on repeated failure.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/authn"
	"github.com/ajime-dev/ajime-agent/internal/clock"
	"github.com/ajime-dev/ajime-agent/internal/workflow"
)

// WorkflowDigest is what the device reports it already has cached.
type WorkflowDigest struct {
	WorkflowID string `json:"workflow_id"`
	Digest     string `json:"digest"`
}

// Response is the backend's reply to a sync request: the full bodies of
// changed/new workflows, plus the authoritative digest list so the syncer
// knows which cached workflows are no longer assigned to this device.
type Response struct {
	Workflows []workflow.Workflow `json:"workflows"`
	Digests   []WorkflowDigest    `json:"digests"`
}

// Backend is the subset of the HTTP client the syncer needs.
type Backend interface {
	SyncWorkflows(ctx context.Context, deviceID, token string, local []WorkflowDigest) (Response, error)
}

// State tracks the syncer's attempt/success history and current cooldown.
type State struct {
	LastAttemptedAt time.Time
	LastSyncedAt    time.Time
	CooldownEndsAt  time.Time
	ErrStreak       int
}

// IsInCooldown reports whether a sync attempt right now would be skipped.
func (s State) IsInCooldown() bool {
	return time.Now().Before(s.CooldownEndsAt)
}

// Syncer drives workflow synchronization against the backend.
type Syncer struct {
	backend        Backend
	tokens         *authn.Manager
	cache          *workflow.Cache
	cooldownOpts   clock.BackoffOptions

	mu    sync.RWMutex
	state State
}

// New returns a Syncer using backend for sync requests, tokens for
// authentication, and cache as the local workflow store.
func New(backend Backend, tokens *authn.Manager, cache *workflow.Cache) *Syncer {
	return &Syncer{
		backend:      backend,
		tokens:       tokens,
		cache:        cache,
		cooldownOpts: clock.DefaultCooldownOptions(),
	}
}

// State returns a snapshot of the syncer's current state.
func (s *Syncer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CachedWorkflowIDs returns the IDs currently held in the workflow cache.
func (s *Syncer) CachedWorkflowIDs() []string {
	return s.cache.Keys()
}

// TriggerSync runs one sync attempt, unless the syncer is in cooldown from
// a previous failure, in which case it is a no-op that returns nil.
func (s *Syncer) TriggerSync(ctx context.Context) error {
	log := alog.WithComponent("syncer")

	s.mu.RLock()
	inCooldown := s.state.IsInCooldown()
	s.mu.RUnlock()
	if inCooldown {
		log.Debug().Msg("sync in cooldown, skipping")
		return nil
	}

	s.mu.Lock()
	s.state.LastAttemptedAt = time.Now()
	s.mu.Unlock()

	err := s.syncOnce(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.state.LastSyncedAt = time.Now()
		s.state.ErrStreak = 0
		log.Info().Msg("sync completed successfully")
		return nil
	}

	s.state.ErrStreak++
	cooldown := clock.Backoff(s.state.ErrStreak, s.cooldownOpts)
	s.state.CooldownEndsAt = time.Now().Add(cooldown)
	log.Error().Err(err).Int("attempt", s.state.ErrStreak).Time("cooldown_until", s.state.CooldownEndsAt).
		Msg("sync failed")
	return err
}

func (s *Syncer) syncOnce(ctx context.Context) error {
	log := alog.WithComponent("syncer")
	log.Info().Msg("starting workflow sync")

	deviceID, err := s.tokens.DeviceID(ctx)
	if err != nil {
		return err
	}
	tok, err := s.tokens.Current(ctx)
	if err != nil {
		return err
	}

	local := make([]WorkflowDigest, 0, s.cache.Len())
	for _, d := range s.cache.Digests() {
		local = append(local, WorkflowDigest{WorkflowID: d.ID, Digest: d.Digest})
	}
	log.Debug().Int("local_count", len(local)).Msg("reporting local digests")

	resp, err := s.backend.SyncWorkflows(ctx, deviceID, tok.Raw, local)
	if err != nil {
		return agenterr.New(agenterr.KindSync, "sync workflows with backend", err)
	}
	log.Info().Int("workflows", len(resp.Workflows)).Int("digests", len(resp.Digests)).
		Msg("received sync response")

	for _, wf := range resp.Workflows {
		digest, err := workflow.Digest(wf)
		if err != nil {
			return agenterr.New(agenterr.KindSerialization, "digest workflow "+wf.ID, err)
		}
		log.Info().Str("workflow_id", wf.ID).Str("name", wf.Name).Msg("caching workflow")
		s.cache.Insert(wf, digest)
	}

	remoteIDs := make(map[string]struct{}, len(resp.Digests))
	for _, d := range resp.Digests {
		remoteIDs[d.WorkflowID] = struct{}{}
	}
	for _, localID := range s.cache.Keys() {
		if _, ok := remoteIDs[localID]; !ok {
			log.Info().Str("workflow_id", localID).Msg("removing workflow from cache")
			s.cache.Remove(localID)
		}
	}

	return nil
}
