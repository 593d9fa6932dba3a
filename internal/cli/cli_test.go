package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/config"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/dedupe"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/delivery"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

// writeTestConfig writes a config pointing its state dir inside the same
// temp dir and returns the config path and the state dir.
func writeTestConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "data")
	path := filepath.Join(dir, "bridge.yaml")
	full := "state:\n  dir: " + stateDir + "\n" + content
	if err := os.WriteFile(path, []byte(full), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, stateDir
}

func swapConfigPath(t *testing.T, path string) {
	t.Helper()
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json format", config.LoggingConfig{Level: "info", Format: "json"}},
		{"text format", config.LoggingConfig{Level: "debug", Format: "text"}},
		{"warn level", config.LoggingConfig{Level: "warn", Format: "json"}},
		{"error level", config.LoggingConfig{Level: "error", Format: "text"}},
		{"default level", config.LoggingConfig{Level: "unknown", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newLogger(tt.cfg)
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got.String() != tt.want {
				t.Errorf("parseLogLevel(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestBuildSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s := buildSender(config.DeliveryConfig{Type: "log"}, logger)
	if _, ok := s.(*delivery.Log); !ok {
		t.Errorf("log type: got %T, want *delivery.Log", s)
	}

	s = buildSender(config.DeliveryConfig{
		Type:    "onebot",
		APIURL:  "http://localhost:5700",
		Timeout: time.Second,
	}, logger)
	if _, ok := s.(*delivery.OneBot); !ok {
		t.Errorf("onebot type: got %T, want *delivery.OneBot", s)
	}
}

func TestBuildDeduper(t *testing.T) {
	d, err := buildDeduper(config.DedupeConfig{Backend: "off"})
	if err != nil {
		t.Fatalf("off backend: %v", err)
	}
	if _, ok := d.(dedupe.None); !ok {
		t.Errorf("off backend: got %T, want dedupe.None", d)
	}

	d, err = buildDeduper(config.DedupeConfig{Backend: "memory", Capacity: 10})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := d.(*dedupe.Memory); !ok {
		t.Errorf("memory backend: got %T, want *dedupe.Memory", d)
	}

	if _, err := buildDeduper(config.DedupeConfig{Backend: "memory", Capacity: 0}); err == nil {
		t.Error("memory backend with zero capacity: expected error, got nil")
	}

	d, err = buildDeduper(config.DedupeConfig{Backend: "redis", RedisAddr: "localhost:6379", TTL: time.Hour})
	if err != nil {
		t.Fatalf("redis backend: %v", err)
	}
	if _, ok := d.(*dedupe.Redis); !ok {
		t.Errorf("redis backend: got %T, want *dedupe.Redis", d)
	}
}

func TestGroupsCommand(t *testing.T) {
	path, stateDir := writeTestConfig(t, "")
	swapConfigPath(t, path)

	// Seed persisted state the way a running bridge would.
	store, err := state.NewFileStore(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	table, err := subscription.Load(store, subscription.Subscription{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := table.AddGroup("100"); err != nil {
		t.Fatal(err)
	}

	if err := listGroups(nil, nil); err != nil {
		t.Fatalf("listGroups returned error: %v", err)
	}
}

func TestGroupsCommandEmpty(t *testing.T) {
	path, _ := writeTestConfig(t, "webhook:\n  groups: []\n")
	swapConfigPath(t, path)

	if err := listGroups(nil, nil); err != nil {
		t.Fatalf("listGroups returned error: %v", err)
	}
}

func TestEventsCommand(t *testing.T) {
	path, _ := writeTestConfig(t, "webhook:\n  events:\n    - push\n")
	swapConfigPath(t, path)

	if err := listEvents(nil, nil); err != nil {
		t.Fatalf("listEvents returned error: %v", err)
	}
}

func TestStatsCommand(t *testing.T) {
	path, stateDir := writeTestConfig(t, "")
	swapConfigPath(t, path)

	store, err := state.NewFileStore(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	collector := stats.NewCollector(stats.StateKey)
	collector.Record("push")
	collector.Record("star")
	if err := collector.Flush(store); err != nil {
		t.Fatal(err)
	}

	if err := showStats(nil, nil); err != nil {
		t.Fatalf("showStats returned error: %v", err)
	}
}

func TestStatsCommandNoState(t *testing.T) {
	path, _ := writeTestConfig(t, "")
	swapConfigPath(t, path)

	if err := showStats(nil, nil); err != nil {
		t.Fatalf("showStats returned error: %v", err)
	}
}
