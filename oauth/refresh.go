// Package oauth keeps a stored OAuth token fresh. It performs jittered checks
// and refreshes when expiry falls within a configured window.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/onnwee/contact-bot/db"
	"github.com/onnwee/contact-bot/telemetry"
)

// Store loads and saves tokens; *db.TokenStore implements it.
type Store interface {
	GetOAuthToken(ctx context.Context, provider string) (db.Token, error)
	UpsertOAuthToken(ctx context.Context, tok db.Token) error
}

// RefreshFunc performs the provider-specific refresh grant.
type RefreshFunc func(ctx context.Context, refreshToken string) (db.Token, error)

// Refresher checks one provider's token on a jittered interval.
type Refresher struct {
	Store    Store
	Provider string
	// Interval is how often to wake up and check (default 5m).
	Interval time.Duration
	// Window triggers a refresh when the remaining lifetime is at most Window (default 15m).
	Window  time.Duration
	Refresh RefreshFunc
	// OnRefresh, if set, receives every newly stored token.
	OnRefresh func(db.Token)
}

func (r *Refresher) defaults() (interval, window time.Duration) {
	interval, window = r.Interval, r.Window
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return interval, window
}

// Run checks the token until ctx is done. It always returns nil.
func (r *Refresher) Run(ctx context.Context) error {
	interval, _ := r.defaults()
	log := slog.Default().With(slog.String("component", "oauth_refresh"), slog.String("provider", r.Provider))

	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval/2) + 1))
	if !sleep(ctx, initialJitter) {
		return nil
	}
	for {
		if _, err := r.Check(ctx); err != nil && ctx.Err() == nil {
			log.Warn("token refresh failed", slog.Any("err", err))
		}
		// Per-iteration jitter (±20% of interval) for scheduling diversity.
		jitterRange := int64(interval/5) + 1
		//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
		nextSleep := interval + time.Duration(rand.Int63n(jitterRange*2)-jitterRange)
		if nextSleep < interval/2 {
			nextSleep = interval / 2
		}
		if !sleep(ctx, nextSleep) {
			return nil
		}
	}
}

// Check refreshes the token once if it is inside the window. It reports
// whether a new token was stored.
func (r *Refresher) Check(ctx context.Context) (bool, error) {
	_, window := r.defaults()
	cur, err := r.Store.GetOAuthToken(ctx, r.Provider)
	if errors.Is(err, db.ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if cur.RefreshToken == "" {
		return false, nil
	}
	// Unknown expiry counts as due.
	if !cur.Expiry.IsZero() && time.Until(cur.Expiry) > window {
		return false, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	next, err := r.Refresh(ctx2, cur.RefreshToken)
	cancel()
	if err != nil {
		countRefresh("error")
		return false, err
	}
	next.Provider = r.Provider
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = cur.Scope
	}
	if err := r.Store.UpsertOAuthToken(ctx, next); err != nil {
		countRefresh("error")
		return false, fmt.Errorf("persist token: %w", err)
	}
	countRefresh("ok")
	slog.Info("token refreshed", slog.String("provider", r.Provider), slog.Time("expires_at", next.Expiry))
	if r.OnRefresh != nil {
		r.OnRefresh(next)
	}
	return true, nil
}

func countRefresh(outcome string) {
	if telemetry.TokenRefreshes != nil {
		telemetry.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
