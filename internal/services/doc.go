// Package services defines shared utilities consumed by the workflow job
// runner and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp file IDs, parser step names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (failed vs review).
//
// Use these helpers when wiring new parser implementations so operational
// behaviour (error handling, observability) stays uniform across the pipeline.
package services
