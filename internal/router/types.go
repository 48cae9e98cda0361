package router

import (
	"errors"

	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	QueueSize int // Initial inbound queue capacity. Default: 256
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		QueueSize: 256,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	UnknownMessages  int64
	Queue            QueueStats
}

// Variant names, used for logs and metric labels.
const (
	VariantTelemetry       = "telemetry"
	VariantWelcome         = "welcome"
	VariantStateUpdate     = "state_update"
	VariantCommandResponse = "command_response"
	VariantNavigation      = "navigation"
	VariantLegacyTelemetry = "legacy_telemetry"
	VariantCoordinates     = "coordinates"
	VariantUnknown         = "unknown"
)

// Message is one decoded inbound message. The concrete type is one of
// Telemetry, Welcome, StateUpdate, CommandResponse, NavigationUpdate,
// LegacyTelemetry, CoordinatesUpdate or Unknown.
type Message interface {
	Variant() string
	isMessage()
}

// Telemetry carries a full telemetry snapshot ({"type":"telemetry"}).
type Telemetry struct {
	Snapshot state.TelemetrySnapshot
}

// Welcome is the greeting sent by the bridge after the handshake.
type Welcome struct {
	Text string
}

// StateUpdate carries the vehicle status ({"type":"state_update"}).
type StateUpdate struct {
	Vehicle state.VehicleState
}

// CommandResponse acknowledges a previously sent command.
type CommandResponse struct {
	Command string
	Success bool
	Message string
}

// NavigationUpdate is a keyed itp/state sample with a numeric value.
type NavigationUpdate struct {
	Key   string
	State state.NavigationState
}

// LegacyTelemetry is a keyed itp/state sample whose value is not a state
// code; its payload (or the message itself) is read as telemetry.
type LegacyTelemetry struct {
	Key      string
	Snapshot state.TelemetrySnapshot
}

// CoordinatesUpdate is a keyed coordinates sample.
type CoordinatesUpdate struct {
	Key         string
	Coordinates state.Coordinates
}

// Unknown is a well-formed message no route matches.
type Unknown struct {
	Type string
	Key  string
}

func (Telemetry) Variant() string         { return VariantTelemetry }
func (Welcome) Variant() string           { return VariantWelcome }
func (StateUpdate) Variant() string       { return VariantStateUpdate }
func (CommandResponse) Variant() string   { return VariantCommandResponse }
func (NavigationUpdate) Variant() string  { return VariantNavigation }
func (LegacyTelemetry) Variant() string   { return VariantLegacyTelemetry }
func (CoordinatesUpdate) Variant() string { return VariantCoordinates }
func (Unknown) Variant() string           { return VariantUnknown }

func (Telemetry) isMessage()         {}
func (Welcome) isMessage()           {}
func (StateUpdate) isMessage()       {}
func (CommandResponse) isMessage()   {}
func (NavigationUpdate) isMessage()  {}
func (LegacyTelemetry) isMessage()   {}
func (CoordinatesUpdate) isMessage() {}
func (Unknown) isMessage()           {}

// Decode errors
var (
	ErrNotObject            = errors.New("frame is not a JSON object")
	ErrMissingDiscriminator = errors.New("message has neither type nor key")
	ErrMissingPayload       = errors.New("message has no payload")
	ErrMissingValue         = errors.New("message has no value")
)

// Decode failure reasons, used as metric labels.
const (
	ReasonInvalidJSON          = "invalid_json"
	ReasonNotObject            = "not_object"
	ReasonMissingDiscriminator = "missing_discriminator"
	ReasonMissingPayload       = "missing_payload"
	ReasonInvalidPayload       = "invalid_payload"
	ReasonMissingValue         = "missing_value"
	ReasonInvalidValue         = "invalid_value"
)

// DecodeError describes why a frame could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return "decode message (" + e.Reason + "): " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Wire shapes.

type commandResponseWire struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type coordinatesWire struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
}
