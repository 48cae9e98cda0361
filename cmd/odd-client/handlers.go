package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/router"
	"github.com/parkingrobot/odd-telemetry/internal/state"
	"github.com/parkingrobot/odd-telemetry/internal/version"
)

// maxCommandBytes bounds POST /command bodies.
const maxCommandBytes = 64 << 10

// bridge is the part of connection.Manager the HTTP surface uses.
type bridge interface {
	Send(v any) error
	Stats() connection.ManagerStats
}

// pinger checks the recorder database. nil when the recorder is disabled.
type pinger interface {
	Ping(ctx context.Context) error
}

// createHandler creates the HTTP handler for health, state, commands and
// metrics.
func createHandler(
	view state.View,
	conn bridge,
	rtr router.Router,
	db pinger,
	metricsPath string,
	metricsHandler http.Handler,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]interface{}),
		}

		// Check bridge connection
		stats := conn.Stats()
		health.Components["bridge"] = stats
		switch view.Connection.Get() {
		case state.StateConnected:
		case state.StateError:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		// Check router
		rs := rtr.Stats()
		health.Components["router"] = map[string]interface{}{
			"received":     rs.MessagesReceived,
			"routed":       rs.MessagesRouted,
			"parse_errors": rs.ParseErrors,
			"queued":       rs.Queue.Len,
		}

		// Check recorder database
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view.Snapshot())
	})

	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// ?name=start sends {"command":"start"}; otherwise the body is
		// forwarded verbatim.
		var msg any
		if name := r.URL.Query().Get("name"); name != "" {
			msg = connection.Command(name)
		} else {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
			if err != nil {
				writeError(w, http.StatusBadRequest, "read body: "+err.Error())
				return
			}
			if !json.Valid(body) {
				writeError(w, http.StatusBadRequest, "body is not valid JSON")
				return
			}
			msg = json.RawMessage(body)
		}

		if err := conn.Send(msg); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, connection.ErrNotConnected) {
				status = http.StatusServiceUnavailable
			}
			logger.Warn("command not sent", "error", err)
			writeError(w, status, err.Error())
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})

	if metricsHandler != nil {
		mux.Handle(metricsPath, metricsHandler)
	}

	return mux
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
