package baseline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"phiguard/core"
	"phiguard/metrics"
)

// DefaultRefreshInterval is how often baselines are recomputed when no
// interval is configured.
const DefaultRefreshInterval = 24 * time.Hour

// HistorySource supplies the historical statistics baselines are computed
// from. How those statistics are derived from raw access logs is the
// source's concern; the refresher only defines the recompute contract.
type HistorySource interface {
	// Users returns the IDs of every user with enough history to baseline.
	Users(ctx context.Context) ([]string, error)
	// DailyAverage returns the user's average access count per day.
	DailyAverage(ctx context.Context, userID string) (float64, error)
	// FrequentElements returns the data elements the user habitually
	// accesses.
	FrequentElements(ctx context.Context, userID string) ([]string, error)
}

// StaticHistorySource serves fixed statistics from memory. It backs tests
// and deployments where baseline statistics are produced out of band and
// loaded at startup.
type StaticHistorySource struct {
	mu       sync.RWMutex
	averages map[string]float64
	elements map[string][]string
}

// NewStaticHistorySource creates an empty static source.
func NewStaticHistorySource() *StaticHistorySource {
	return &StaticHistorySource{
		averages: make(map[string]float64),
		elements: make(map[string][]string),
	}
}

// SetUser records the statistics served for a user.
func (s *StaticHistorySource) SetUser(userID string, dailyAverage float64, frequentElements []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.averages[userID] = dailyAverage
	s.elements[userID] = frequentElements
}

func (s *StaticHistorySource) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.averages))
	for u := range s.averages {
		users = append(users, u)
	}
	return users, nil
}

func (s *StaticHistorySource) DailyAverage(ctx context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.averages[userID], nil
}

func (s *StaticHistorySource) FrequentElements(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elements[userID], nil
}

// Refresher recomputes every known user's baseline on a fixed schedule.
// The refresh is advisory: failures are logged and never halt detection,
// since detectors already tolerate an absent baseline.
type Refresher struct {
	provider *Provider
	source   HistorySource
	interval time.Duration
	logger   *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// NewRefresher creates a refresher running RefreshAll every interval.
func NewRefresher(provider *Provider, source HistorySource, interval time.Duration, logger *zap.SugaredLogger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		provider: provider,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background refresh loop. An initial sweep runs
// immediately; subsequent sweeps run every interval until Stop or the
// parent context cancels. Start is idempotent while running.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.refresh(loopCtx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.refresh(loopCtx)
			case <-loopCtx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit. The in-flight sweep is
// abandoned at the next per-user checkpoint.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()
	if err := r.RefreshAll(ctx); err != nil {
		r.logger.Warnw("Baseline refresh failed, detection continues without it", "error", err)
		metrics.BaselineRefreshes.WithLabelValues("error").Inc()
		return
	}
	metrics.BaselineRefreshes.WithLabelValues("ok").Inc()
	r.logger.Infow("Baseline refresh complete", "duration", time.Since(start))
}

// RefreshAll recomputes and stores a baseline for every user the history
// source knows about. A per-user failure is logged and skipped; a
// cancelled context abandons the sweep promptly.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	users, err := r.source.Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate users for baseline refresh: %w", err)
	}

	refreshed := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.refreshUser(ctx, userID); err != nil {
			r.logger.Warnw("Failed to refresh baseline for user, skipping",
				"user_id", userID, "error", err)
			continue
		}
		refreshed++
	}
	r.logger.Debugw("Baselines recomputed", "users", refreshed)
	return nil
}

func (r *Refresher) refreshUser(ctx context.Context, userID string) error {
	average, err := r.source.DailyAverage(ctx, userID)
	if err != nil {
		return err
	}
	elements, err := r.source.FrequentElements(ctx, userID)
	if err != nil {
		return err
	}
	return r.provider.Put(ctx, &core.UserBaseline{
		UserID:                  userID,
		DailyAverageAccessCount: average,
		CommonDataElements:      elements,
	})
}
