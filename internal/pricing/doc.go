// Package pricing estimates the cost of processing steps before they run.
//
// Estimates are deliberately cheap approximations: audio duration derives
// from file size alone (no decoding), token counts from character length.
// Price tables are static and keyed by provider+model; an unknown pair is a
// configuration error rather than a silent zero so operators notice typos in
// the model name before queueing work.
//
// Monetary values round to 4 decimal places, durations to 2.
package pricing
