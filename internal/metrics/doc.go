// Package metrics provides Prometheus metrics for the realtime channel client.
//
// Key metrics:
//   - Connection state and reconnect attempts
//   - Inbound frame rates by kind, dropped (malformed) frames
//   - Handler panics by event
//   - Tracked channel count
//   - Relay publishes and failures
package metrics
