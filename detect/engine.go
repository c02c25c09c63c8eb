package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"phiguard/core"
	"phiguard/metrics"
)

// BaselineSource provides read-only per-user historical statistics.
// A false return means no baseline exists, which is a valid state.
type BaselineSource interface {
	Get(ctx context.Context, userID string) (*core.UserBaseline, bool)
}

// Reporter receives the arbitrated anomaly for persistence, indexing and
// notification. It returns the stored anomaly ID.
type Reporter interface {
	Report(ctx context.Context, anomaly *core.AnomalyEvent) string
}

// DefaultSystemComponent tags emitted anomalies when no component name is
// configured.
const DefaultSystemComponent = "access-monitor"

// Engine is the inline evaluation path. One instance is constructed at
// process start and shared by reference; it owns the event window and the
// cooldown tracker and may be called from concurrent request goroutines.
//
// Evaluation is bounded (fixed window, O(rules) cost) and never propagates
// an internal failure to the caller: detection degrades to "no anomaly"
// rather than becoming an error on the access it is monitoring.
type Engine struct {
	rules     *RuleStore
	window    *EventWindow
	baselines BaselineSource
	cooldown  *CooldownTracker
	reporter  Reporter
	detectors map[core.AnomalyType]Detector
	logger    *zap.SugaredLogger
	component string
	now       func() time.Time
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithSystemComponent sets the component name stamped on emitted anomalies.
func WithSystemComponent(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.component = name
		}
	}
}

// NewEngine wires the evaluation path together. The time, volume and
// pattern detectors are registered by default; further strategies can be
// added with RegisterDetector.
func NewEngine(rules *RuleStore, window *EventWindow, baselines BaselineSource, cooldown *CooldownTracker, reporter Reporter, logger *zap.SugaredLogger, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:     rules,
		window:    window,
		baselines: baselines,
		cooldown:  cooldown,
		reporter:  reporter,
		detectors: make(map[core.AnomalyType]Detector),
		logger:    logger,
		component: DefaultSystemComponent,
		now:       time.Now,
	}
	for _, d := range []Detector{NewTimeDetector(), NewVolumeDetector(), NewPatternDetector()} {
		e.detectors[d.Type()] = d
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterDetector adds a strategy for an anomaly type. Registering a type
// twice is an error; neither the arbiter nor the reporter needs to change
// for a new type.
func (e *Engine) RegisterDetector(d Detector) error {
	if _, exists := e.detectors[d.Type()]; exists {
		return fmt.Errorf("detector for type %q already registered", d.Type())
	}
	e.detectors[d.Type()] = d
	return nil
}

// ProcessAccessEvent evaluates a single access synchronously and returns
// the emitted anomaly, or nil when nothing fired. It never returns an
// error: detection is best-effort relative to the primary access flow.
func (e *Engine) ProcessAccessEvent(ctx context.Context, userID, action string, dataElements []string, eventContext map[string]string) *core.AnomalyEvent {
	start := e.now()
	defer func() {
		metrics.EvaluationDuration.Observe(e.now().Sub(start).Seconds())
		if r := recover(); r != nil {
			e.logger.Errorw("Panic during event evaluation, treating as no anomaly",
				"user_id", userID, "panic", r)
		}
	}()
	metrics.EventsProcessed.Inc()

	event := core.AccessEvent{
		Timestamp:    start.UTC(),
		UserID:       userID,
		Action:       action,
		DataElements: dataElements,
		Context:      eventContext,
	}
	e.window.Push(event)

	baseline := e.lookupBaseline(ctx, userID)

	var candidates []ruleCandidate
	for _, rule := range e.rules.ActiveRules() {
		if !rule.Enabled {
			continue
		}
		detector, ok := e.detectors[rule.Type]
		if !ok {
			e.logger.Debugw("No detector registered for rule type, skipping",
				"rule_id", rule.ID, "type", rule.Type)
			continue
		}
		if e.cooldown.IsOnCooldown(userID, rule.ID, rule.Cooldown()) {
			metrics.CooldownSuppressed.Inc()
			continue
		}

		candidate := e.safeDetect(detector, rule, event, baseline)
		if candidate == nil {
			continue
		}
		candidates = append(candidates, ruleCandidate{rule: rule, candidate: candidate})
	}

	winner, ok := arbitrate(candidates)
	if !ok {
		return nil
	}

	anomaly := e.buildAnomaly(event, winner)
	e.cooldown.MarkFired(userID, winner.rule.ID)
	if e.reporter != nil {
		e.reporter.Report(ctx, anomaly)
	}
	metrics.AnomaliesEmitted.WithLabelValues(string(anomaly.Severity), string(anomaly.Type)).Inc()
	return anomaly
}

// lookupBaseline tolerates both an absent provider and an absent baseline.
func (e *Engine) lookupBaseline(ctx context.Context, userID string) *core.UserBaseline {
	if e.baselines == nil {
		return nil
	}
	baseline, ok := e.baselines.Get(ctx, userID)
	if !ok {
		return nil
	}
	return baseline
}

// safeDetect runs one detector, containing malformed-rule errors and
// panics so the remaining rules still get evaluated.
func (e *Engine) safeDetect(detector Detector, rule core.AnomalyRule, event core.AccessEvent, baseline *core.UserBaseline) (candidate *Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("Detector panicked, treating as no candidate",
				"rule_id", rule.ID, "type", rule.Type, "panic", r)
			metrics.DetectorErrors.WithLabelValues(string(rule.Type), "panic").Inc()
			candidate = nil
		}
	}()

	candidate, err := detector.Detect(rule, event, e.window, baseline)
	if err != nil {
		reason := "internal"
		if errors.Is(err, ErrMalformedRule) {
			reason = "malformed_rule"
		}
		e.logger.Errorw("Detector error, skipping rule",
			"rule_id", rule.ID, "type", rule.Type, "reason", reason, "error", err)
		metrics.DetectorErrors.WithLabelValues(string(rule.Type), reason).Inc()
		return nil
	}
	return candidate
}

func (e *Engine) buildAnomaly(event core.AccessEvent, winner ruleCandidate) *core.AnomalyEvent {
	anomaly := core.NewAnomalyEvent(winner.rule.Type, event.UserID)
	anomaly.SystemComponent = e.component
	anomaly.Severity = winner.candidate.Severity
	anomaly.ConfidenceScore = winner.candidate.Confidence
	anomaly.Description = winner.candidate.Description
	for k, v := range winner.candidate.Evidence {
		anomaly.RawData[k] = v
	}
	anomaly.RawData["rule_id"] = winner.rule.ID
	anomaly.RawData["action"] = event.Action
	return anomaly
}
