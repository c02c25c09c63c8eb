package core

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how actionable an anomaly is. Values are ordered
// Low < Medium < High < Critical; use Rank for comparisons.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of a severity. Unknown severities rank
// below SeverityLow so they never win arbitration.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AnomalyType identifies the detection strategy a rule is evaluated by.
// New types can be added without touching arbitration or reporting; they
// only need a detector registered for them.
type AnomalyType string

const (
	AnomalyUnusualAccessTime    AnomalyType = "unusual_access_time"
	AnomalyUnusualAccessVolume  AnomalyType = "unusual_access_volume"
	AnomalyUnusualAccessPattern AnomalyType = "unusual_access_pattern"
	AnomalyMultipleFailedAuth   AnomalyType = "multiple_failed_auth"
)

// AccessEvent is a single observed access to a protected record. Events are
// ephemeral: they live in the engine's sliding window and carry no
// persistence guarantee. They are not the audit record.
type AccessEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	UserID       string            `json:"user_id"`
	Action       string            `json:"action"`
	DataElements []string          `json:"data_elements,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
}

// AnomalyEvent is the detection output: at most one is emitted per access
// event. ConfidenceScore is always at or above the originating rule's
// minimum confidence.
type AnomalyEvent struct {
	EventID         string                 `json:"event_id"`
	Timestamp       time.Time              `json:"timestamp"`
	Type            AnomalyType            `json:"anomaly_type"`
	UserID          string                 `json:"user_id,omitempty"`
	SystemComponent string                 `json:"system_component"`
	Severity        Severity               `json:"severity"`
	ConfidenceScore float64                `json:"confidence_score"`
	Description     string                 `json:"description"`
	RawData         map[string]interface{} `json:"raw_data,omitempty"`
}

// NewAnomalyEvent creates an AnomalyEvent with a generated ID and timestamp.
func NewAnomalyEvent(t AnomalyType, userID string) *AnomalyEvent {
	return &AnomalyEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		UserID:    userID,
		RawData:   make(map[string]interface{}),
	}
}

// UserBaseline holds per-user historical statistics consumed read-only by
// detectors. Absence of a baseline is a valid state: a first-seen user
// simply has no expected reference yet.
type UserBaseline struct {
	UserID                  string    `json:"user_id"`
	DailyAverageAccessCount float64   `json:"daily_average_access_count"`
	CommonDataElements      []string  `json:"common_data_elements,omitempty"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// CommonElementSet returns the baseline's habitual data elements as a set.
func (b *UserBaseline) CommonElementSet() map[string]struct{} {
	set := make(map[string]struct{}, len(b.CommonDataElements))
	for _, el := range b.CommonDataElements {
		set[el] = struct{}{}
	}
	return set
}
