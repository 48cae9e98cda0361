// Package connection implements the bridge Connection Manager.
//
// The Connection Manager:
//   - Owns the single WebSocket connection to the telemetry bridge
//   - Drives the Disconnected/Connecting/Connected/Error state machine
//   - Reconnects on loss after a fixed delay (optionally capped backoff)
//     until Disconnect is called
//   - Hands every inbound frame, in order, to the Message Router
package connection
