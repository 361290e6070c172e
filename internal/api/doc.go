// Package api defines wire-format types and converters for the HTTP API and
// CLI layer. It translates internal catalog models into transport-friendly
// DTOs that consumers can render without coupling to internal types.
//
// # Key Types
//
// File/FileDetail: transport representation of a tracked file, optionally with
// its parse history, queued jobs, and current prediction.
//
// ParserConfig: transformation rule with matching and dependency fields.
//
// Prediction/ProcessingStep: the forecast chain for a file with per-step and
// total cost estimates.
//
// DaemonStatus: daemon running state, job stats, and parser health.
//
// # Services
//
// CatalogService wraps read-only store queries and converts results to DTOs.
// ApprovePrediction validates a step selection against the stored prediction
// and enqueues the approved jobs.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (catalog.JobStatus, catalog.FileKind) are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds. Parser config settings
// are passed through as json.RawMessage to avoid double-encoding.
package api
