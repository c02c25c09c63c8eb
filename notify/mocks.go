package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"phiguard/core"
)

// MockNotifier captures delivered anomalies for assertions in tests.
type MockNotifier struct {
	mu         sync.RWMutex
	delivered  []*core.AnomalyEvent
	failNext   bool
	notifyErr  error
	notifyHook func(*core.AnomalyEvent)
}

// NewMockNotifier creates an empty mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, anomaly *core.AnomalyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		if m.notifyErr != nil {
			return m.notifyErr
		}
		return fmt.Errorf("simulated delivery failure")
	}
	m.delivered = append(m.delivered, anomaly)
	if m.notifyHook != nil {
		m.notifyHook(anomaly)
	}
	return nil
}

// Delivered returns a copy of everything notified so far.
func (m *MockNotifier) Delivered() []*core.AnomalyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.AnomalyEvent, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// FailNext makes the next Notify call return an error.
func (m *MockNotifier) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
	m.notifyErr = err
}

// OnNotify registers a hook invoked for every successful delivery.
func (m *MockNotifier) OnNotify(hook func(*core.AnomalyEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyHook = hook
}

// CreateTestAnomaly builds an anomaly fixture for notification tests.
func CreateTestAnomaly(severity core.Severity, anomalyType core.AnomalyType, userID string) *core.AnomalyEvent {
	return &core.AnomalyEvent{
		EventID:         fmt.Sprintf("test-anomaly-%d", time.Now().UnixNano()),
		Timestamp:       time.Now().UTC(),
		Type:            anomalyType,
		UserID:          userID,
		SystemComponent: "access-monitor",
		Severity:        severity,
		ConfidenceScore: 0.8,
		Description:     "test anomaly",
	}
}
