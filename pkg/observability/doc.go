// Package observability provides structured logging, Prometheus metrics,
// and graceful shutdown for the federation engine.
//
// # Logging
//
// Logger wraps stdlib slog with a JSON handler and chainable field helpers.
// Request-scoped identifiers (request id, relying-party entity id, session
// id) travel through context so that every component logs with the same
// correlation fields.
//
// # Metrics
//
// Metrics registers counters for the protocol operations: requests
// validated by outcome, responses issued by binding, artifacts stored,
// resolved and missed, and logout notifications rendered or skipped.
//
// # Related Packages
//
//   - pkg/server: installs the logging middleware and /metrics endpoint
package observability
