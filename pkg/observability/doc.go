// Package observability bundles the operational concerns of the Critiq
// server: structured logging, Prometheus metrics, optional OpenTelemetry
// export, health probes, and graceful shutdown.
//
// The logger is a thin wrapper over log/slog emitting JSON. Request-scoped
// loggers (request ID, authenticated username) travel through the request
// context; FromContext reassembles them in handlers.
package observability
