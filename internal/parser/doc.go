// Package parser defines the contract between the chain engine and the
// executable parsing capabilities (audio extraction, transcription,
// summarization, and whatever else a deployment registers).
//
// Implementations are opaque to the engine: the chain manager only consults
// their estimator and default-configuration accessors, and the workflow only
// calls Run. The Registry is assembled once at the composition root.
package parser
