// Package frame implements the wire codec for the realtime channel protocol.
//
// Server frames are JSON objects keyed by "type":
//   - connected, subscribed, unsubscribed: lifecycle acknowledgements
//   - heartbeat: server liveness check, answered with a ping echoing its timestamp
//   - pong: reply to a client ping
//   - data: channel payload, forwarded opaquely
//   - error: server-side error notice
//
// Client commands are JSON objects keyed by "action": subscribe, unsubscribe, ping.
package frame
