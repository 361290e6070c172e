// Package chain decides what should happen to a file next.
//
// The Manager answers four questions over the parser config catalog: which
// configs apply to a path, which of those are ready to run, what the file's
// full future processing chain looks like with estimated costs, and what a
// selection of predicted steps would cost in aggregate. Prediction is
// virtual path arithmetic over persisted state: output paths are forecast by
// suffix concatenation, so multi-step futures are computed before any step
// has actually run.
//
// The manager never enqueues work. Materialized predictions are advisory;
// dispatch decisions belong to the workflow layer.
package chain
