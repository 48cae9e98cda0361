// streamtest connects to the telemetry bridge and prints every state change
// to the console. Lines typed on stdin are sent to the bridge: a bare word
// becomes {"command": word}, a line starting with { is sent verbatim.
// Usage: go run ./cmd/streamtest --url ws://localhost:8081 [--verbose]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/parkingrobot/odd-telemetry/internal/config"
	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/router"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

func main() {
	flagSet := pflag.NewFlagSet("streamtest", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to config file")
	bridgeURL := flagSet.String("url", "", "bridge WebSocket URL, overrides bridge.url")
	verbose := flagSet.BoolP("verbose", "v", false, "print every logged message as JSON")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := loadConfig(*configPath, *bridgeURL)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := state.NewStore(cfg.StoreConfig())
	defer store.Close()

	rtr := router.NewRouter(router.DefaultRouterConfig(), store, logger)
	connMgr := connection.NewManager(cfg.ManagerConfig(), store.Connection, rtr, logger)

	// Start console printers
	unsubscribe := printChanges(os.Stdout, store.View(), *verbose)
	defer unsubscribe()

	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	connMgr.Connect("")

	go readCommands(ctx, os.Stdin, connMgr, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				routerStats := rtr.Stats()
				connStats := connMgr.Stats()
				logger.Info("stats",
					"state", connStats.State,
					"attempts", connStats.Attempts,
					"reconnects", connStats.Reconnects,
					"router_received", routerStats.MessagesReceived,
					"router_routed", routerStats.MessagesRouted,
					"parse_errors", routerStats.ParseErrors,
					"queued", routerStats.Queue.Len,
				)
			}
		}
	}()

	logger.Info("streaming started - type a command (start, stop, reset) or press Ctrl+C to stop",
		"url", cfg.Bridge.URL,
	)

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	if err := connMgr.Close(shutdownCtx); err != nil {
		logger.Warn("connection manager close", "error", err)
	}
	if err := rtr.Stop(shutdownCtx); err != nil {
		logger.Warn("router stop", "error", err)
	}

	logger.Info("shutdown complete")
}

// loadConfig loads the config at path and applies the --url override,
// validating the result.
func loadConfig(path, bridgeURL string) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, err
	}
	if bridgeURL == "" {
		return cfg, nil
	}
	cfg.Bridge.URL = bridgeURL
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// printChanges prints one line per slot change and returns a function that
// cancels every subscription.
func printChanges(out io.Writer, view state.View, verbose bool) func() {
	var cancels []func()

	cancels = append(cancels, view.Connection.Subscribe(func(s state.ConnectionState) {
		fmt.Fprintf(out, "[CONNECTION] %s\n", s)
	}))
	cancels = append(cancels, view.Telemetry.Subscribe(func(t state.TelemetrySnapshot) {
		fmt.Fprintf(out, "[TELEMETRY] speed=%.2f battery=%.1f pos=(%.2f, %.2f) heading=%.1f\n",
			t.Speed, t.Battery, t.Position.X, t.Position.Y, t.Heading)
	}))
	cancels = append(cancels, view.Navigation.Subscribe(func(n *state.NavigationState) {
		if n == nil {
			return
		}
		fmt.Fprintf(out, "[NAVIGATION] %d %s ts=%s\n", n.Value, n.Label(), n.Timestamp)
	}))
	cancels = append(cancels, view.Coordinates.Subscribe(func(c *state.Coordinates) {
		if c == nil {
			return
		}
		fmt.Fprintf(out, "[COORDINATES] type=%s x=%.3f y=%.3f ts=%s\n", c.Type, c.X, c.Y, c.Timestamp)
	}))
	cancels = append(cancels, view.Vehicle.Subscribe(func(v state.VehicleState) {
		fmt.Fprintf(out, "[VEHICLE] status=%s\n", v.Status)
	}))
	cancels = append(cancels, view.Feedback.Subscribe(func(fb *state.CommandFeedback) {
		if fb == nil {
			fmt.Fprintln(out, "[FEEDBACK] cleared")
			return
		}
		fmt.Fprintf(out, "[FEEDBACK] command=%s success=%t message=%q\n", fb.Command, fb.Success, fb.Message)
	}))

	if verbose {
		cancels = append(cancels, view.Log.Subscribe(func(entries []state.LogEntry) {
			if len(entries) == 0 {
				return
			}
			last := entries[len(entries)-1]
			data, _ := json.MarshalIndent(last.Data, "", "  ")
			fmt.Fprintf(out, "[MESSAGE %s] %s\n", last.Time.Format(time.TimeOnly), data)
		}))
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// sender is the part of connection.Manager readCommands needs.
type sender interface {
	Send(v any) error
}

// readCommands sends one message per non-empty input line until in is
// exhausted or ctx is done.
func readCommands(ctx context.Context, in io.Reader, conn sender, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		msg, ok := parseCommand(scanner.Text())
		if !ok {
			continue
		}
		if err := conn.Send(msg); err != nil {
			logger.Warn("command not sent", "error", err)
		}
	}
}

// parseCommand turns an input line into an outbound message.
func parseCommand(line string) (any, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, false
	case strings.HasPrefix(line, "{"):
		if !json.Valid([]byte(line)) {
			return nil, false
		}
		return json.RawMessage(line), true
	default:
		return connection.Command(line), true
	}
}
