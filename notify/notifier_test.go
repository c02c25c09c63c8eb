package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phiguard/core"
)

// capturingHandler records webhook deliveries.
type capturingHandler struct {
	mu       sync.Mutex
	requests []map[string]interface{}
	headers  []http.Header
	status   int
}

func (h *capturingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.requests = append(h.requests, body)
	h.headers = append(h.headers, r.Header.Clone())
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *capturingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func TestWebhookNotifierDelivers(t *testing.T) {
	handler := &capturingHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	notifier := NewWebhookNotifier(Config{
		Enabled:        true,
		Type:           NotificationWebhook,
		WebhookURL:     server.URL,
		WebhookHeaders: map[string]string{"X-Token": "secret"},
	}, zap.NewNop().Sugar())

	anomaly := CreateTestAnomaly(core.SeverityHigh, core.AnomalyUnusualAccessVolume, "user-1")
	require.NoError(t, notifier.Notify(context.Background(), anomaly))

	require.Equal(t, 1, handler.count())
	body := handler.requests[0]
	assert.Equal(t, anomaly.EventID, body["anomaly_id"])
	assert.Equal(t, string(core.AnomalyUnusualAccessVolume), body["anomaly_type"])
	assert.Equal(t, "high", body["severity"])
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "secret", handler.headers[0].Get("X-Token"))
	assert.Equal(t, "application/json", handler.headers[0].Get("Content-Type"))
}

func TestWebhookNotifierNon2xxIsError(t *testing.T) {
	handler := &capturingHandler{status: http.StatusBadGateway}
	server := httptest.NewServer(handler)
	defer server.Close()

	notifier := NewWebhookNotifier(Config{
		Enabled:    true,
		WebhookURL: server.URL,
	}, zap.NewNop().Sugar())

	err := notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityHigh, core.AnomalyUnusualAccessTime, "user-1"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "non-2xx")
}

func TestWebhookNotifierSeverityFilter(t *testing.T) {
	handler := &capturingHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	notifier := NewWebhookNotifier(Config{
		Enabled:     true,
		WebhookURL:  server.URL,
		MinSeverity: "high",
	}, zap.NewNop().Sugar())

	require.NoError(t, notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityMedium, core.AnomalyUnusualAccessTime, "user-1")))
	assert.Equal(t, 0, handler.count(), "medium severity should be filtered")

	require.NoError(t, notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityCritical, core.AnomalyUnusualAccessTime, "user-1")))
	assert.Equal(t, 1, handler.count())
}

func TestWebhookNotifierRateLimitDrops(t *testing.T) {
	handler := &capturingHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	notifier := NewWebhookNotifier(Config{
		Enabled:       true,
		WebhookURL:    server.URL,
		RatePerMinute: 2,
	}, zap.NewNop().Sugar())

	for i := 0; i < 5; i++ {
		require.NoError(t, notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityHigh, core.AnomalyUnusualAccessVolume, "user-1")))
	}
	assert.Equal(t, 2, handler.count(), "burst beyond the limit should be dropped")
}

func TestLogNotifierFiltersBelowMinSeverity(t *testing.T) {
	notifier := NewLogNotifier(Config{Enabled: true, MinSeverity: "critical"}, zap.NewNop().Sugar())

	assert.NoError(t, notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityLow, core.AnomalyUnusualAccessTime, "user-1")))
	assert.NoError(t, notifier.Notify(context.Background(), CreateTestAnomaly(core.SeverityCritical, core.AnomalyUnusualAccessTime, "user-1")))
}

func TestNewNotifierSelection(t *testing.T) {
	logger := zap.NewNop().Sugar()

	n, err := NewNotifier(Config{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, n, "disabled config should produce no notifier")

	n, err = NewNotifier(Config{Enabled: true, Type: NotificationWebhook, WebhookURL: "http://localhost:9"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &WebhookNotifier{}, n)

	n, err = NewNotifier(Config{Enabled: true, Type: NotificationLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	_, err = NewNotifier(Config{Enabled: true, Type: NotificationWebhook}, logger)
	assert.Error(t, err, "webhook without URL should fail")

	_, err = NewNotifier(Config{Enabled: true, Type: "pager"}, logger)
	assert.Error(t, err)
}

func TestMockNotifierCapturesAndFails(t *testing.T) {
	mock := NewMockNotifier()
	anomaly := CreateTestAnomaly(core.SeverityHigh, core.AnomalyUnusualAccessPattern, "user-1")

	require.NoError(t, mock.Notify(context.Background(), anomaly))
	require.Len(t, mock.Delivered(), 1)
	assert.Equal(t, anomaly.EventID, mock.Delivered()[0].EventID)

	mock.FailNext(nil)
	assert.Error(t, mock.Notify(context.Background(), anomaly))
	assert.Len(t, mock.Delivered(), 1)
}
