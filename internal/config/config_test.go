package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
bridge:
  url: ws://robot.local:8080/ws
  ping_interval: 5s
reconnect:
  delay: 500ms
  backoff: true
  max_delay: 10s
state:
  feedback_expiry: 2s
  log_capacity: 20
recorder:
  enabled: true
  database:
    host: localhost
    port: 5433
    name: odd
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Bridge.URL != "ws://robot.local:8080/ws" {
		t.Errorf("Bridge.URL = %q, want %q", cfg.Bridge.URL, "ws://robot.local:8080/ws")
	}
	if cfg.Bridge.PingInterval != 5*time.Second {
		t.Errorf("Bridge.PingInterval = %v, want 5s", cfg.Bridge.PingInterval)
	}
	if cfg.Reconnect.Delay != 500*time.Millisecond || !cfg.Reconnect.Backoff {
		t.Errorf("Reconnect = %+v", cfg.Reconnect)
	}
	if cfg.State.LogCapacity != 20 {
		t.Errorf("State.LogCapacity = %d, want 20", cfg.State.LogCapacity)
	}
	if cfg.Recorder.Database.Port != 5433 {
		t.Errorf("Recorder.Database.Port = %d, want 5433", cfg.Recorder.Database.Port)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_BRIDGE_HOST", "10.0.0.7")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
bridge:
  url: ws://${TEST_BRIDGE_HOST}:8081
recorder:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Bridge.URL != "ws://10.0.0.7:8081" {
		t.Errorf("Bridge.URL = %q, want %q", cfg.Bridge.URL, "ws://10.0.0.7:8081")
	}
	if cfg.Recorder.Database.Password != "secret123" {
		t.Errorf("Recorder.Database.Password = %q, want %q", cfg.Recorder.Database.Password, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config file") {
		t.Errorf("Load() error = %v, want read config file error", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "bridge: [unclosed")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: debug\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Bridge.URL != DefaultBridgeURL {
		t.Errorf("Bridge.URL = %q, want default %q", cfg.Bridge.URL, DefaultBridgeURL)
	}
	if cfg.Reconnect.Delay != DefaultReconnectDelay {
		t.Errorf("Reconnect.Delay = %v, want default %v", cfg.Reconnect.Delay, DefaultReconnectDelay)
	}
	if cfg.State.FeedbackExpiry != DefaultFeedbackExpiry {
		t.Errorf("State.FeedbackExpiry = %v, want default %v", cfg.State.FeedbackExpiry, DefaultFeedbackExpiry)
	}
	if cfg.State.LogCapacity != DefaultLogCapacity {
		t.Errorf("State.LogCapacity = %d, want default %d", cfg.State.LogCapacity, DefaultLogCapacity)
	}
	if cfg.Recorder.Database.Port != DefaultDBPort {
		t.Errorf("Recorder.Database.Port = %d, want default %d", cfg.Recorder.Database.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadAndValidate_EmptyPath(t *testing.T) {
	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Bridge.URL != DefaultBridgeURL {
		t.Errorf("Bridge.URL = %q, want default", cfg.Bridge.URL)
	}
}

func TestLoadAndValidate_Invalid(t *testing.T) {
	path := writeTempFile(t, "bridge:\n  url: http://localhost:8081\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("LoadAndValidate() error = %v, want validation error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "http scheme",
			modify:  func(c *Config) { c.Bridge.URL = "http://localhost:8081" },
			wantErr: `bridge.url must use ws or wss, got "http://localhost:8081"`,
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.Bridge.URL = "ws:///ws" },
			wantErr: `bridge.url has no host: "ws:///ws"`,
		},
		{
			name:    "negative reconnect delay",
			modify:  func(c *Config) { c.Reconnect.Delay = -time.Second },
			wantErr: "reconnect.delay must be positive, got -1s",
		},
		{
			name: "backoff max below delay",
			modify: func(c *Config) {
				c.Reconnect.Backoff = true
				c.Reconnect.MaxDelay = time.Second
			},
			wantErr: "reconnect.max_delay (1s) cannot be less than reconnect.delay (3s)",
		},
		{
			name:    "negative log capacity",
			modify:  func(c *Config) { c.State.LogCapacity = -1 },
			wantErr: "state.log_capacity must be >= 1",
		},
		{
			name:    "recorder without host",
			modify:  func(c *Config) { c.Recorder.Enabled = true },
			wantErr: "recorder.database.host is required",
		},
		{
			name: "recorder min_conns exceeds max_conns",
			modify: func(c *Config) {
				c.Recorder.Enabled = true
				c.Recorder.Database = DBConfig{Host: "localhost", Name: "odd", User: "user", MaxConns: 2, MinConns: 5}
			},
			wantErr: "recorder.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "disabled recorder is not checked",
			modify:  func(c *Config) { c.Recorder.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "metrics port out of range",
			modify:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(level)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", level, got, err, want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) expected error")
	}
}

func TestManagerConfig(t *testing.T) {
	cfg := Default()
	cfg.Bridge.URL = "wss://bridge.example:443/ws"
	cfg.Bridge.PingInterval = -1
	cfg.Reconnect.Backoff = true

	mc := cfg.ManagerConfig()

	if mc.URL != "wss://bridge.example:443/ws" || mc.Client.URL != mc.URL {
		t.Errorf("URL = %q / %q", mc.URL, mc.Client.URL)
	}
	if mc.Client.PingInterval != 0 {
		t.Errorf("Client.PingInterval = %v, want 0 (disabled)", mc.Client.PingInterval)
	}
	if mc.ReconnectDelay != DefaultReconnectDelay || !mc.ReconnectBackoff || mc.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("reconnect settings = %v %v %v", mc.ReconnectDelay, mc.ReconnectBackoff, mc.ReconnectMaxDelay)
	}
	if mc.Client.BufferSize != DefaultBufferSize {
		t.Errorf("Client.BufferSize = %d, want %d", mc.Client.BufferSize, DefaultBufferSize)
	}
}

func TestStoreConfig(t *testing.T) {
	cfg := Default()
	sc := cfg.StoreConfig()

	if sc.FeedbackExpiry != 5*time.Second || sc.LogCapacity != 50 {
		t.Errorf("StoreConfig() = %+v, want {5s 50}", sc)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
