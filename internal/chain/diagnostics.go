package chain

import (
	"log/slog"

	"hopper/internal/logging"
)

// DiagnosticKind classifies a non-fatal condition observed during config
// resolution or prediction.
type DiagnosticKind string

const (
	// DiagnosticImplementationMissing fires when an enabled config names an
	// implementation with no registry entry; the config is skipped.
	DiagnosticImplementationMissing DiagnosticKind = "implementation_missing"

	// DiagnosticEstimationFailure fires when cost estimation against a real
	// input degrades to zero.
	DiagnosticEstimationFailure DiagnosticKind = "estimation_failure"

	// DiagnosticTagLookupFailed fires when a file's tags cannot be read;
	// prediction proceeds with no tags.
	DiagnosticTagLookupFailed DiagnosticKind = "tag_lookup_failed"

	// DiagnosticPredictionSkipped fires when a file's prediction fails
	// outright during a bulk recompute and the file is skipped.
	DiagnosticPredictionSkipped DiagnosticKind = "prediction_skipped"
)

// Diagnostic is a structured warning emitted to the configured sink instead
// of an ad-hoc log line, so callers can assert on these conditions.
type Diagnostic struct {
	Kind   DiagnosticKind
	Parser string
	Path   string
	Detail string
}

// DiagnosticSink receives diagnostics as they occur.
type DiagnosticSink func(Diagnostic)

// LogSink returns a sink that records diagnostics as warnings.
func LogSink(logger *slog.Logger) DiagnosticSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(d Diagnostic) {
		logger.Warn("chain diagnostic",
			logging.String("kind", string(d.Kind)),
			logging.String(logging.FieldParser, d.Parser),
			logging.String(logging.FieldPath, d.Path),
			logging.String("detail", d.Detail),
		)
	}
}
