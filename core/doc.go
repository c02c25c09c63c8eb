// Package core defines the domain model shared across the anomaly
// detection engine: detection rules, access events, emitted anomalies and
// per-user baselines. It carries no behavior beyond validation and small
// helpers so that every other package can depend on it without cycles.
package core
