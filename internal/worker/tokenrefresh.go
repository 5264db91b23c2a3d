package worker

import (
	"context"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/authn"
)

// TokenRefreshOptions configures the refresh worker's cadence and how far
// ahead of expiry it refreshes.
type TokenRefreshOptions struct {
	CheckInterval    time.Duration
	RefreshThreshold time.Duration
}

// DefaultTokenRefreshOptions matches the original's tuned defaults: check
// hourly, refresh once within 24h of expiry.
func DefaultTokenRefreshOptions() TokenRefreshOptions {
	return TokenRefreshOptions{CheckInterval: time.Hour, RefreshThreshold: 24 * time.Hour}
}

// TokenRefreshWorker refreshes the device token shortly before it expires.
type TokenRefreshWorker struct {
	tokens    *authn.Manager
	threshold time.Duration
}

// NewTokenRefreshWorker returns a worker that refreshes tokens through
// tokens once they are within threshold of expiry.
func NewTokenRefreshWorker(tokens *authn.Manager, threshold time.Duration) *TokenRefreshWorker {
	return &TokenRefreshWorker{tokens: tokens, threshold: threshold}
}

func (w *TokenRefreshWorker) Name() string { return "token_refresh" }

func (w *TokenRefreshWorker) Tick(ctx context.Context) error {
	log := alog.WithComponent("token_refresh")

	tok, err := w.tokens.Current(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get token")
		return nil
	}

	if !tok.ExpiresWithin(w.threshold) {
		log.Debug().Msg("token still valid, no refresh needed")
		return nil
	}

	log.Info().Msg("token nearing expiry, refreshing")
	if _, err := w.tokens.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("failed to refresh token")
		return nil
	}
	return nil
}
