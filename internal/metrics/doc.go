// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Bridge connection state, dial attempts and scheduled reconnects
//   - Inbound frames, decode failures and routed messages by variant
//   - Outbound send results
//   - Message log length and recorder flushes
package metrics
