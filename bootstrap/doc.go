// Package bootstrap wires the application together: logger, configuration,
// storage backend, detection engine, baseline refresher, reporting and the
// metrics endpoint. Commands in cmd/ call into it so initialization lives
// in one place.
package bootstrap
