// Package baseline maintains per-user historical access statistics: a
// store-backed read path consumed by detectors and a scheduled refresher
// that recomputes every known user's baseline. The read path and the
// refresher share no mutable state; they communicate only through the
// key-value store.
package baseline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"phiguard/core"
	"phiguard/storage"
)

// baselineKeyPrefix namespaces baseline documents in the key-value store.
const baselineKeyPrefix = "baseline:"

// Provider reads user baselines. A missing baseline is a valid state
// (first-seen user) and read failures degrade to "no baseline" so the
// inline detection path never inherits a storage error.
type Provider struct {
	store  storage.KVStore
	logger *zap.SugaredLogger
}

// NewProvider creates a store-backed baseline provider.
func NewProvider(store storage.KVStore, logger *zap.SugaredLogger) *Provider {
	return &Provider{store: store, logger: logger}
}

// Get returns the baseline for userID, or false when none exists or the
// store cannot be read.
func (p *Provider) Get(ctx context.Context, userID string) (*core.UserBaseline, bool) {
	var b core.UserBaseline
	err := p.store.Get(ctx, baselineKeyPrefix+userID, &b)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warnw("Baseline read failed, treating as absent",
				"user_id", userID, "error", err)
		}
		return nil, false
	}
	return &b, true
}

// Put overwrites the baseline for a user.
func (p *Provider) Put(ctx context.Context, b *core.UserBaseline) error {
	b.UpdatedAt = time.Now().UTC()
	return p.store.Set(ctx, baselineKeyPrefix+b.UserID, b)
}

// Delete removes a user's baseline.
func (p *Provider) Delete(ctx context.Context, userID string) error {
	return p.store.Delete(ctx, baselineKeyPrefix+userID)
}
