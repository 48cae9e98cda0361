package state

import "time"

// Config sizes the store.
type Config struct {
	FeedbackExpiry time.Duration // How long command feedback stays visible
	LogCapacity    int           // Messages kept in the message log
}

// DefaultConfig returns the reference dashboard behaviour.
func DefaultConfig() Config {
	return Config{
		FeedbackExpiry: DefaultFeedbackExpiry,
		LogCapacity:    DefaultLogCapacity,
	}
}

// Store owns every slot of one client instance.
type Store struct {
	Connection  *Slot[ConnectionState]
	Telemetry   *Slot[TelemetrySnapshot]
	Navigation  *Slot[*NavigationState]
	Coordinates *Slot[*Coordinates]
	Vehicle     *Slot[VehicleState]
	Feedback    *FeedbackSlot
	Log         *MessageLog
	LastUpdate  *Slot[time.Time]
}

// NewStore creates all slots with their initial values.
func NewStore(cfg Config) *Store {
	return &Store{
		Connection:  NewSlot(StateDisconnected),
		Telemetry:   NewSlot(TelemetrySnapshot{}),
		Navigation:  NewSlot[*NavigationState](nil),
		Coordinates: NewSlot[*Coordinates](nil),
		Vehicle:     NewSlot(VehicleState{Status: DefaultVehicleStatus}),
		Feedback:    NewFeedbackSlot(cfg.FeedbackExpiry),
		Log:         NewMessageLog(cfg.LogCapacity),
		LastUpdate:  NewSlot(time.Time{}),
	}
}

// Close cancels pending timers owned by the store.
func (s *Store) Close() {
	s.Feedback.Stop()
}

// View is the read-only surface handed to consumers.
type View struct {
	Connection  Observable[ConnectionState]
	Telemetry   Observable[TelemetrySnapshot]
	Navigation  Observable[*NavigationState]
	Coordinates Observable[*Coordinates]
	Vehicle     Observable[VehicleState]
	Feedback    Observable[*CommandFeedback]
	Log         Observable[[]LogEntry]
	LastUpdate  Observable[time.Time]
}

// View returns the read-only surface of the store.
func (s *Store) View() View {
	return View{
		Connection:  s.Connection,
		Telemetry:   s.Telemetry,
		Navigation:  s.Navigation,
		Coordinates: s.Coordinates,
		Vehicle:     s.Vehicle,
		Feedback:    s.Feedback,
		Log:         s.Log,
		LastUpdate:  s.LastUpdate,
	}
}

// Snapshot is a point-in-time copy of every slot, shaped for JSON.
type Snapshot struct {
	Connection      ConnectionState   `json:"connection"`
	Telemetry       TelemetrySnapshot `json:"telemetry"`
	Navigation      *NavigationState  `json:"navigation"`
	NavigationLabel string            `json:"navigation_label,omitempty"`
	Coordinates     *Coordinates      `json:"coordinates"`
	Vehicle         VehicleState      `json:"vehicle"`
	Feedback        *CommandFeedback  `json:"feedback"`
	Log             []LogEntry        `json:"log"`
	LastUpdate      *time.Time        `json:"last_update"`
}

// Snapshot reads every slot of the view.
func (v View) Snapshot() Snapshot {
	snap := Snapshot{
		Connection:  v.Connection.Get(),
		Telemetry:   v.Telemetry.Get(),
		Navigation:  v.Navigation.Get(),
		Coordinates: v.Coordinates.Get(),
		Vehicle:     v.Vehicle.Get(),
		Feedback:    v.Feedback.Get(),
		Log:         v.Log.Get(),
	}
	if snap.Navigation != nil {
		snap.NavigationLabel = snap.Navigation.Label()
	}
	if last := v.LastUpdate.Get(); !last.IsZero() {
		snap.LastUpdate = &last
	}
	return snap
}
