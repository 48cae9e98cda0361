// Package state implements the observable state surface of the client.
//
// Every value the UI renders lives in a Slot:
//   - Connection state of the bridge link
//   - Latest telemetry snapshot (speed, battery, position, heading)
//   - Navigation state code and robot coordinates
//   - Vehicle status and self-expiring command feedback
//   - Bounded log of recently received messages
//
// Slots are created once by NewStore and live as long as the client.
// Consumers read and subscribe through View; only the router and the
// connection manager write.
package state
