// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover the chain milestones so workflow code can emit
// consistent, push-friendly messages without duplicating HTTP glue, and each
// event kind can be silenced individually through the [notifications] config
// section.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
