// Package daemon coordinates the long-running Hopper process.
//
// It wires the catalog store, chain manager, workflow manager, directory
// watcher, and HTTP API into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon owns startup ordering and shutdown
// draining; the subsystems it hosts keep their logic in their own packages.
package daemon
