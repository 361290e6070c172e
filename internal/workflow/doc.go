// Package workflow advances queued parser jobs through their processing
// chains.
//
// The Manager runs a single claim-execute-persist worker over the catalog's
// job queue. A claimed job resolves its parser config and implementation,
// picks its input (the job's file, or an earlier step's output recorded
// against the same file), runs the implementation, and records the parse
// outcome. Every produced output is registered as a derivative file and the
// predictions on both ends of the hop are refreshed, which is how the next
// step of a chain surfaces. Jobs whose dependencies or inputs are not ready
// yet are deferred back to the queue rather than failed, and jobs left
// running by a crashed daemon return to pending on the next start.
//
// In auto-approve mode every step that becomes ready is queued immediately,
// so a dropped file flows through its whole predicted chain unattended. In
// manual mode the manager stops at the recorded prediction and waits for an
// operator to approve steps through the API or CLI.
package workflow
