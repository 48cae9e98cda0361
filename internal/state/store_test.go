package state

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewStore_InitialValues(t *testing.T) {
	s := NewStore(DefaultConfig())
	defer s.Close()

	if s.Connection.Get() != StateDisconnected {
		t.Errorf("Connection = %v, want disconnected", s.Connection.Get())
	}
	if s.Vehicle.Get().Status != "stopped" {
		t.Errorf("Vehicle.Status = %q, want stopped", s.Vehicle.Get().Status)
	}
	if s.Telemetry.Get() != (TelemetrySnapshot{}) {
		t.Errorf("Telemetry = %+v, want zero", s.Telemetry.Get())
	}
	if s.Navigation.Get() != nil || s.Coordinates.Get() != nil || s.Feedback.Get() != nil {
		t.Error("expected nil navigation, coordinates and feedback")
	}
	if s.Log.Len() != 0 {
		t.Errorf("Log.Len() = %d, want 0", s.Log.Len())
	}
}

func TestView_Snapshot(t *testing.T) {
	s := NewStore(DefaultConfig())
	defer s.Close()

	s.Connection.Set(StateConnected)
	s.Navigation.Set(&NavigationState{Value: 3, Timestamp: "T1"})
	s.LastUpdate.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	snap := s.View().Snapshot()
	if snap.NavigationLabel != "APPROACHING" {
		t.Errorf("NavigationLabel = %q, want APPROACHING", snap.NavigationLabel)
	}
	if snap.LastUpdate == nil {
		t.Fatal("expected LastUpdate")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"connection":"connected"`) {
		t.Errorf("snapshot JSON missing connection state: %s", data)
	}
	if !strings.Contains(string(data), `"log":[]`) {
		t.Errorf("snapshot JSON should render empty log as []: %s", data)
	}
}

func TestNavigationLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "IDLE"},
		{1, "SCANNING"},
		{2, "PARKING_SPOT_DETECTED"},
		{3, "APPROACHING"},
		{4, "ALIGNING"},
		{5, "PARKING_IN_PROGRESS"},
		{6, "PARKING_COMPLETE"},
		{7, "OBSTACLE_DETECTED"},
		{8, "ERROR"},
		{9, "UNKNOWN"},
		{42, "UNKNOWN"},
		{-1, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := NavigationLabel(tt.code); got != tt.want {
			t.Errorf("NavigationLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestConnectionState_String(t *testing.T) {
	if StateError.String() != "error" {
		t.Errorf("StateError = %q", StateError.String())
	}
	if ConnectionState(99).String() != "unknown" {
		t.Errorf("out of range = %q", ConnectionState(99).String())
	}
	if !StateConnecting.Active() || StateError.Active() {
		t.Error("Active() mismatch")
	}
}
