package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, cfg state.Config) (Router, *state.Store) {
	t.Helper()
	store := state.NewStore(cfg)
	t.Cleanup(store.Close)

	r := NewRouter(DefaultRouterConfig(), store, slog.Default(),
		WithClock(func() time.Time { return fixedNow }))
	return r, store
}

func raw(data string) connection.RawMessage {
	return connection.RawMessage{
		Data:       []byte(data),
		SessionID:  uuid.New(),
		ReceivedAt: fixedNow.Add(-time.Second),
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.QueueSize != 256 {
		t.Errorf("QueueSize = %d, want 256", cfg.QueueSize)
	}
}

func TestRouter_StartStop(t *testing.T) {
	r, _ := newTestRouter(t, state.DefaultConfig())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give it a moment to start
	time.Sleep(10 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestRouter_Telemetry(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	r.Route(raw(`{"type":"telemetry","payload":{"speed":5,"battery":80,"position":{"x":1,"y":2},"heading":90}}`))

	want := state.TelemetrySnapshot{Speed: 5, Battery: 80, Position: state.Position{X: 1, Y: 2}, Heading: 90}
	if got := store.Telemetry.Get(); got != want {
		t.Errorf("Telemetry = %+v, want %+v", got, want)
	}
	if got := store.Log.Len(); got != 1 {
		t.Errorf("log length = %d, want 1", got)
	}
	if got := store.LastUpdate.Get(); !got.Equal(fixedNow.Add(-time.Second)) {
		t.Errorf("LastUpdate = %v, want receive time", got)
	}
}

func TestRouter_TelemetryReplacedWholesale(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	r.Route(raw(`{"type":"telemetry","payload":{"speed":5,"battery":80,"heading":90}}`))
	r.Route(raw(`{"type":"telemetry","payload":{"speed":1}}`))

	want := state.TelemetrySnapshot{Speed: 1}
	if got := store.Telemetry.Get(); got != want {
		t.Errorf("Telemetry = %+v, want %+v", got, want)
	}
}

func TestRouter_Navigation(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	r.Route(raw(`{"key":"itp/state","value":"3","timestamp":"T1"}`))

	nav := store.Navigation.Get()
	if nav == nil {
		t.Fatal("expected navigation state")
	}
	if nav.Value != 3 || nav.Timestamp != "T1" {
		t.Errorf("Navigation = %+v, want {3 T1}", *nav)
	}
	if nav.Label() != "APPROACHING" {
		t.Errorf("Label() = %q, want APPROACHING", nav.Label())
	}

	r.Route(raw(`{"key":"itp/state","value":42,"timestamp":"T2"}`))
	if got := store.Navigation.Get().Label(); got != "UNKNOWN" {
		t.Errorf("Label() = %q, want UNKNOWN", got)
	}
}

func TestRouter_Coordinates(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	r.Route(raw(`{"key":"robot/coordinates","value":"{\"x\":1,\"y\":2}","timestamp":"T2"}`))

	coords := store.Coordinates.Get()
	if coords == nil {
		t.Fatal("expected coordinates")
	}
	want := state.Coordinates{X: 1, Y: 2, Type: "unknown", Timestamp: "T2"}
	if *coords != want {
		t.Errorf("Coordinates = %+v, want %+v", *coords, want)
	}
}

func TestRouter_StateUpdate(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	if got := store.Vehicle.Get().Status; got != "stopped" {
		t.Fatalf("initial status = %q, want stopped", got)
	}

	r.Route(raw(`{"type":"state_update","payload":{"status":"running"}}`))

	if got := store.Vehicle.Get().Status; got != "running" {
		t.Errorf("status = %q, want running", got)
	}
}

func TestRouter_CommandResponse(t *testing.T) {
	r, store := newTestRouter(t, state.Config{FeedbackExpiry: 50 * time.Millisecond, LogCapacity: 10})

	r.Route(raw(`{"type":"command_response","command":"start","success":true,"message":"Vehicle started"}`))

	fb := store.Feedback.Get()
	if fb == nil {
		t.Fatal("expected command feedback")
	}
	want := state.CommandFeedback{Command: "start", Success: true, Message: "Vehicle started", Timestamp: fixedNow}
	if *fb != want {
		t.Errorf("Feedback = %+v, want %+v", *fb, want)
	}

	deadline := time.Now().Add(time.Second)
	for store.Feedback.Get() != nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Feedback.Get() != nil {
		t.Error("feedback did not expire")
	}
}

func TestRouter_WelcomeAndUnknownAreLogged(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	r.Route(raw(`{"type":"welcome","message":"hi"}`))
	r.Route(raw(`{"type":"heartbeat"}`))

	if got := store.Log.Len(); got != 2 {
		t.Fatalf("log length = %d, want 2", got)
	}

	stats := r.Stats()
	if stats.MessagesRouted != 2 || stats.UnknownMessages != 1 {
		t.Errorf("stats = %+v, want 2 routed, 1 unknown", stats)
	}
}

func TestRouter_DecodeFailureLeavesStateAlone(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())
	store.Connection.Set(state.StateConnected)

	r.Route(raw(`{"type":"welcome"}`))
	before := store.Log.Get()

	r.Route(raw(`this is not json`))
	r.Route(raw(`{"value":"3"}`))

	if got := store.Connection.Get(); got != state.StateConnected {
		t.Errorf("connection = %v, want connected", got)
	}
	after := store.Log.Get()
	if len(after) != len(before) {
		t.Errorf("log length = %d, want %d", len(after), len(before))
	}

	stats := r.Stats()
	if stats.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", stats.ParseErrors)
	}
	if stats.MessagesReceived != 3 {
		t.Errorf("MessagesReceived = %d, want 3", stats.MessagesReceived)
	}
}

func TestRouter_LogBounded(t *testing.T) {
	r, store := newTestRouter(t, state.Config{FeedbackExpiry: time.Second, LogCapacity: 5})

	for i := 0; i < 8; i++ {
		r.Route(raw(mustJSON(t, map[string]any{"type": "telemetry", "payload": map[string]any{"speed": i}})))
	}

	entries := store.Log.Get()
	if len(entries) != 5 {
		t.Fatalf("log length = %d, want 5", len(entries))
	}

	// Oldest evicted first: speeds 3..7 remain in order.
	for i, e := range entries {
		var msg struct {
			Payload state.TelemetrySnapshot `json:"payload"`
		}
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if want := float64(i + 3); msg.Payload.Speed != want {
			t.Errorf("entry %d speed = %v, want %v", i, msg.Payload.Speed, want)
		}
	}
}

func TestRouter_HandleMessageKeepsOrder(t *testing.T) {
	r, store := newTestRouter(t, state.Config{FeedbackExpiry: time.Second, LogCapacity: 200})

	var speeds []float64
	store.Telemetry.Subscribe(func(s state.TelemetrySnapshot) {
		speeds = append(speeds, s.Speed)
	})

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 1; i <= 100; i++ {
		r.HandleMessage(raw(mustJSON(t, map[string]any{"type": "telemetry", "payload": map[string]any{"speed": i}})))
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Replay of the zero value, then every message in order.
	if len(speeds) != 101 {
		t.Fatalf("saw %d values, want 101", len(speeds))
	}
	for i := 1; i <= 100; i++ {
		if speeds[i] != float64(i) {
			t.Fatalf("speeds[%d] = %v, want %d", i, speeds[i], i)
		}
	}

	if got := store.Log.Len(); got != 100 {
		t.Errorf("log length = %d, want 100", got)
	}
}

func TestRouter_HandleMessageAfterStop(t *testing.T) {
	r, store := newTestRouter(t, state.DefaultConfig())

	ctx := context.Background()
	r.Start(ctx)
	r.Stop(ctx)

	r.HandleMessage(raw(`{"type":"welcome"}`))

	if got := store.Log.Len(); got != 0 {
		t.Errorf("log length = %d, want 0", got)
	}
}
