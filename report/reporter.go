// Package report persists emitted anomalies and maintains the lookup
// indexes backing dashboards and investigation tooling.
package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"phiguard/core"
	"phiguard/metrics"
	"phiguard/notify"
	"phiguard/storage"
)

const (
	anomalyKeyPrefix = "anomaly:"
	userIndexPrefix  = "anomalies:user:"
	recentIndexKey   = "anomalies:recent"

	// DefaultIndexCap bounds the per-user and global recent indexes.
	DefaultIndexCap = 100
)

// Filter narrows a GetAnomalies query. Zero fields match everything.
type Filter struct {
	UserID   string
	Type     core.AnomalyType
	Severity core.Severity
	Limit    int
}

// Reporter persists anomalies, indexes them for retrieval and forwards
// them to the configured notifier. Persistence failures never propagate:
// the anomaly has already been decided and the caller gets it regardless.
type Reporter struct {
	store    storage.KVStore
	notifier notify.Notifier
	indexCap int64
	logger   *zap.SugaredLogger
}

// NewReporter creates a reporter. notifier may be nil to disable forwarding;
// indexCap <= 0 uses DefaultIndexCap.
func NewReporter(store storage.KVStore, notifier notify.Notifier, indexCap int, logger *zap.SugaredLogger) *Reporter {
	bound := int64(indexCap)
	if bound <= 0 {
		bound = DefaultIndexCap
	}
	return &Reporter{
		store:    store,
		notifier: notifier,
		indexCap: bound,
		logger:   logger,
	}
}

// Report persists and indexes the anomaly, forwards it to the notifier and
// returns its ID. Every failure is logged and counted but swallowed.
func (r *Reporter) Report(ctx context.Context, anomaly *core.AnomalyEvent) string {
	if anomaly.Severity.Rank() >= core.SeverityHigh.Rank() {
		r.logger.Warnw("Anomaly detected",
			"anomaly_id", anomaly.EventID,
			"anomaly_type", anomaly.Type,
			"severity", anomaly.Severity,
			"confidence", anomaly.ConfidenceScore,
			"user_id", anomaly.UserID)
	} else {
		r.logger.Infow("Anomaly detected",
			"anomaly_id", anomaly.EventID,
			"anomaly_type", anomaly.Type,
			"severity", anomaly.Severity,
			"confidence", anomaly.ConfidenceScore,
			"user_id", anomaly.UserID)
	}

	if err := r.store.Set(ctx, anomalyKeyPrefix+anomaly.EventID, anomaly); err != nil {
		r.logger.Errorw("Failed to persist anomaly",
			"anomaly_id", anomaly.EventID, "error", err)
		metrics.ReportFailures.Inc()
		return anomaly.EventID
	}

	if anomaly.UserID != "" {
		r.pushIndex(ctx, userIndexPrefix+anomaly.UserID, anomaly.EventID)
	}
	r.pushIndex(ctx, recentIndexKey, anomaly.EventID)

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, anomaly); err != nil {
			r.logger.Errorw("Failed to notify anomaly",
				"anomaly_id", anomaly.EventID, "error", err)
		}
	}
	return anomaly.EventID
}

func (r *Reporter) pushIndex(ctx context.Context, key, id string) {
	if err := r.store.ListPush(ctx, key, id); err != nil {
		r.logger.Errorw("Failed to index anomaly", "index", key, "error", err)
		metrics.ReportFailures.Inc()
		return
	}
	if err := r.store.ListTrim(ctx, key, r.indexCap); err != nil {
		r.logger.Warnw("Failed to trim anomaly index", "index", key, "error", err)
	}
}

// GetAnomaly fetches a single stored anomaly by ID.
func (r *Reporter) GetAnomaly(ctx context.Context, id string) (*core.AnomalyEvent, error) {
	var anomaly core.AnomalyEvent
	if err := r.store.Get(ctx, anomalyKeyPrefix+id, &anomaly); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("anomaly %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to read anomaly %s: %w", id, err)
	}
	return &anomaly, nil
}

// GetAnomalies reads stored anomalies newest first. A UserID filter reads
// the per-user index, otherwise the global recent index. Type and Severity
// filter post-read; Limit caps the result after filtering (0 means all
// indexed entries).
func (r *Reporter) GetAnomalies(ctx context.Context, filter Filter) ([]*core.AnomalyEvent, error) {
	indexKey := recentIndexKey
	if filter.UserID != "" {
		indexKey = userIndexPrefix + filter.UserID
	}

	ids, err := r.store.ListRange(ctx, indexKey, 0, r.indexCap-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read anomaly index %s: %w", indexKey, err)
	}

	anomalies := make([]*core.AnomalyEvent, 0, len(ids))
	for _, id := range ids {
		var anomaly core.AnomalyEvent
		if err := r.store.Get(ctx, anomalyKeyPrefix+id, &anomaly); err != nil {
			// Indexed but evicted or lost entries are skipped.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read anomaly %s: %w", id, err)
		}
		if filter.Type != "" && anomaly.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && anomaly.Severity != filter.Severity {
			continue
		}
		anomalies = append(anomalies, &anomaly)
		if filter.Limit > 0 && len(anomalies) >= filter.Limit {
			break
		}
	}
	return anomalies, nil
}
