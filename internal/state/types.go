package state

import (
	"encoding/json"
	"time"
)

// ConnectionState is the lifecycle state of the bridge connection.
type ConnectionState int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the transport is open.
	StateConnected

	// StateError means the last dial or transport failed.
	StateError
)

// String returns the lowercase name used on dashboards and in logs.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a transport is open or being opened.
func (s ConnectionState) Active() bool {
	return s == StateConnecting || s == StateConnected
}

// Position is a planar position in the vehicle's frame.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TelemetrySnapshot is the latest vehicle telemetry. It is replaced
// wholesale on every telemetry message and kept across disconnects.
type TelemetrySnapshot struct {
	Speed    float64  `json:"speed"`
	Battery  float64  `json:"battery"`
	Position Position `json:"position"`
	Heading  float64  `json:"heading"`
}

// NavigationState is the parking state machine code published by the
// image processing pipeline.
type NavigationState struct {
	Value     int    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Label returns the human readable name of the state code.
func (n NavigationState) Label() string {
	return NavigationLabel(n.Value)
}

var navigationLabels = [...]string{
	"IDLE",
	"SCANNING",
	"PARKING_SPOT_DETECTED",
	"APPROACHING",
	"ALIGNING",
	"PARKING_IN_PROGRESS",
	"PARKING_COMPLETE",
	"OBSTACLE_DETECTED",
	"ERROR",
}

// NavigationLabel maps a navigation state code to its label.
// Codes outside 0-8 map to "UNKNOWN".
func NavigationLabel(code int) string {
	if code < 0 || code >= len(navigationLabels) {
		return "UNKNOWN"
	}
	return navigationLabels[code]
}

// DefaultCoordinatesType is used when a coordinates message has no type.
const DefaultCoordinatesType = "unknown"

// Coordinates is a tracked point (parking slot, lane, ...).
type Coordinates struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
}

// DefaultVehicleStatus is the vehicle status before any state update.
const DefaultVehicleStatus = "stopped"

// VehicleState is the coarse vehicle status reported by the bridge.
type VehicleState struct {
	Status string `json:"status"`
}

// CommandFeedback is the result of the last command sent to the bridge.
type CommandFeedback struct {
	Command   string    `json:"command"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one received message as kept in the message log.
type LogEntry struct {
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}
