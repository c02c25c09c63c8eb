// Package notify delivers emitted anomalies to external channels. Delivery
// is best effort: a failed notification never blocks or fails detection.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"phiguard/core"
	"phiguard/metrics"
)

// NotificationType represents the type of notification channel
type NotificationType string

const (
	// NotificationWebhook posts anomalies as JSON to an HTTP endpoint
	NotificationWebhook NotificationType = "webhook"
	// NotificationLog writes anomalies to the application log only
	NotificationLog NotificationType = "log"
)

const defaultHTTPTimeout = 10 * time.Second

// Config holds configuration for a notification channel
type Config struct {
	Enabled bool             `json:"enabled"`
	Type    NotificationType `json:"type"`

	// Webhook configuration
	WebhookURL     string            `json:"webhook_url"`
	WebhookMethod  string            `json:"webhook_method"`
	WebhookHeaders map[string]string `json:"webhook_headers"`

	// MinSeverity drops anomalies below this severity. Empty means all.
	MinSeverity string `json:"min_severity"`

	// RatePerMinute caps webhook deliveries. Zero means unlimited.
	RatePerMinute int `json:"rate_per_minute"`
}

// Notifier delivers an anomaly to a channel.
type Notifier interface {
	Notify(ctx context.Context, anomaly *core.AnomalyEvent) error
}

// NewNotifier builds the notifier for a channel config. A disabled config
// returns nil.
func NewNotifier(cfg Config, logger *zap.SugaredLogger) (Notifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Type {
	case NotificationWebhook:
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("webhook notifier requires a webhook_url")
		}
		return NewWebhookNotifier(cfg, logger), nil
	case NotificationLog, "":
		return NewLogNotifier(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown notification type: %s", cfg.Type)
	}
}

// shouldNotify checks the anomaly against the channel's severity filter.
func shouldNotify(anomaly *core.AnomalyEvent, cfg Config) bool {
	if cfg.MinSeverity == "" {
		return true
	}
	min := core.Severity(cfg.MinSeverity)
	if !min.Valid() {
		return true
	}
	return anomaly.Severity.Rank() >= min.Rank()
}

// WebhookNotifier posts anomalies to an HTTP endpoint as JSON.
type WebhookNotifier struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewWebhookNotifier creates a webhook notifier for the given config.
func NewWebhookNotifier(cfg Config, logger *zap.SugaredLogger) *WebhookNotifier {
	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		limiter: limiter,
		logger:  logger,
	}
}

// Notify sends the anomaly to the configured endpoint. Filtered or
// rate-limited anomalies are dropped silently.
func (w *WebhookNotifier) Notify(ctx context.Context, anomaly *core.AnomalyEvent) error {
	if !shouldNotify(anomaly, w.config) {
		return nil
	}
	if w.limiter != nil && !w.limiter.Allow() {
		w.logger.Warnw("Webhook notification rate limited, dropping",
			"anomaly_id", anomaly.EventID, "url", w.config.WebhookURL)
		metrics.NotificationsSent.WithLabelValues("rate_limited").Inc()
		return nil
	}

	payload := map[string]interface{}{
		"anomaly_id":       anomaly.EventID,
		"anomaly_type":     anomaly.Type,
		"severity":         anomaly.Severity,
		"confidence_score": anomaly.ConfidenceScore,
		"user_id":          anomaly.UserID,
		"description":      anomaly.Description,
		"timestamp":        anomaly.Timestamp,
		"system_component": anomaly.SystemComponent,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	method := w.config.WebhookMethod
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, w.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PHIGuard/1.0")
	for key, value := range w.config.WebhookHeaders {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			w.logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	metrics.NotificationsSent.WithLabelValues("ok").Inc()
	w.logger.Infow("Sent webhook notification",
		"anomaly_id", anomaly.EventID, "severity", anomaly.Severity)
	return nil
}

// LogNotifier writes anomalies to the application log. It is the default
// channel when no webhook is configured.
type LogNotifier struct {
	config Config
	logger *zap.SugaredLogger
}

// NewLogNotifier creates a log notifier for the given config.
func NewLogNotifier(cfg Config, logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{config: cfg, logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, anomaly *core.AnomalyEvent) error {
	if !shouldNotify(anomaly, l.config) {
		return nil
	}
	l.logger.Warnw("Anomaly notification",
		"anomaly_id", anomaly.EventID,
		"anomaly_type", anomaly.Type,
		"severity", anomaly.Severity,
		"confidence", anomaly.ConfidenceScore,
		"user_id", anomaly.UserID,
		"description", anomaly.Description)
	metrics.NotificationsSent.WithLabelValues("ok").Inc()
	return nil
}
