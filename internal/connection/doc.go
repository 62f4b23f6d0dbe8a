// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket connection to the realtime endpoint
//   - Tracks channel subscriptions and replays them after every reconnect
//   - Reconnects with exponential backoff (1s, 2s, 4s, ... up to 5 attempts)
//   - Answers server heartbeats with a ping echoing the heartbeat timestamp
//   - Routes data and error frames to the event dispatcher
package connection
