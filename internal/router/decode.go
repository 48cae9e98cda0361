package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// Key fragments recognized on keyed messages.
const (
	keyNavigation  = "itp/state"
	keyCoordinates = "coordinates"
)

// Decode classifies one inbound frame.
//
// Messages carrying a string "type" of telemetry, welcome, state_update or
// command_response decode to the matching variant. Otherwise a string "key"
// containing "itp/state" yields NavigationUpdate (numeric value) or
// LegacyTelemetry, and one containing "coordinates" yields
// CoordinatesUpdate. Any other message with a type or key is Unknown.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, decodeErr(ReasonInvalidJSON, err)
	}
	if fields == nil {
		return nil, decodeErr(ReasonNotObject, ErrNotObject)
	}

	typ, hasType := stringField(fields, "type")
	key, hasKey := stringField(fields, "key")

	if hasType {
		switch typ {
		case "telemetry":
			var snap state.TelemetrySnapshot
			if err := decodePayload(fields, &snap); err != nil {
				return nil, err
			}
			return Telemetry{Snapshot: snap}, nil

		case "welcome":
			text, _ := stringField(fields, "message")
			return Welcome{Text: text}, nil

		case "state_update":
			var vs state.VehicleState
			if err := decodePayload(fields, &vs); err != nil {
				return nil, err
			}
			return StateUpdate{Vehicle: vs}, nil

		case "command_response":
			var wire commandResponseWire
			if err := json.Unmarshal(data, &wire); err != nil {
				return nil, decodeErr(ReasonInvalidPayload, err)
			}
			return CommandResponse{
				Command: wire.Command,
				Success: wire.Success,
				Message: wire.Message,
			}, nil
		}
	}

	if hasKey {
		switch {
		case strings.Contains(key, keyNavigation):
			return decodeNavigation(key, data, fields)
		case strings.Contains(key, keyCoordinates):
			return decodeCoordinates(key, fields)
		}
	}

	if hasType || hasKey {
		return Unknown{Type: typ, Key: key}, nil
	}
	return nil, decodeErr(ReasonMissingDiscriminator, ErrMissingDiscriminator)
}

func decodeNavigation(key string, data []byte, fields map[string]json.RawMessage) (Message, error) {
	timestamp := textField(fields, "timestamp")

	if code, ok := stateCode(fields["value"]); ok {
		return NavigationUpdate{
			Key:   key,
			State: state.NavigationState{Value: code, Timestamp: timestamp},
		}, nil
	}

	// Not a state code: the sample carries telemetry instead.
	src := data
	if payload, ok := fields["payload"]; ok && !isNull(payload) {
		src = payload
	}

	var snap state.TelemetrySnapshot
	if err := json.Unmarshal(src, &snap); err != nil {
		return nil, decodeErr(ReasonInvalidPayload, err)
	}
	return LegacyTelemetry{Key: key, Snapshot: snap}, nil
}

func decodeCoordinates(key string, fields map[string]json.RawMessage) (Message, error) {
	raw, ok := fields["value"]
	if !ok || isNull(raw) {
		return nil, decodeErr(ReasonMissingValue, ErrMissingValue)
	}

	// The value is normally a JSON document encoded as a string.
	var embedded string
	if err := json.Unmarshal(raw, &embedded); err == nil {
		raw = json.RawMessage(embedded)
	}

	var wire coordinatesWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, decodeErr(ReasonInvalidValue, err)
	}

	coords := state.Coordinates{
		X:         wire.X,
		Y:         wire.Y,
		Type:      wire.Type,
		Timestamp: textField(fields, "timestamp"),
	}
	if coords.Type == "" {
		coords.Type = state.DefaultCoordinatesType
	}
	if coords.Timestamp == "" {
		coords.Timestamp = wire.Timestamp
	}
	return CoordinatesUpdate{Key: key, Coordinates: coords}, nil
}

func decodePayload(fields map[string]json.RawMessage, v any) error {
	payload, ok := fields["payload"]
	if !ok || isNull(payload) {
		return decodeErr(ReasonMissingPayload, ErrMissingPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return decodeErr(ReasonInvalidPayload, err)
	}
	return nil
}

// stateCode reads an integer state code from a JSON number or a string
// holding one.
func stateCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}

	if code, err := strconv.Atoi(text); err == nil {
		return code, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// stringField returns fields[name] if it is a JSON string.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// textField returns fields[name] as text: strings unquoted, other scalars
// verbatim, null or absent as "".
func textField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return ""
	}
	if s, ok := stringField(fields, name); ok {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeErr(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

// compact returns data without insignificant whitespace, or data itself if
// it cannot be compacted.
func compact(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return json.RawMessage(data)
	}
	return json.RawMessage(buf.Bytes())
}

// reasonOf returns the metric label for a decode error.
func reasonOf(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return "unknown"
}
