package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "triage" {
		t.Errorf("provider: got %s, want triage", cfg.LLM.Provider)
	}
	if cfg.Engine.DefaultAgent != "EmergencyCoordinator" {
		t.Errorf("default agent: got %s", cfg.Engine.DefaultAgent)
	}
	if cfg.Engine.MaxToolIterations != 5 {
		t.Errorf("max_tool_iterations: got %d, want 5", cfg.Engine.MaxToolIterations)
	}
	if cfg.Engine.MaxHandoffs != 10 {
		t.Errorf("max_handoffs: got %d, want 10", cfg.Engine.MaxHandoffs)
	}
	if cfg.Engine.ToolTimeout != 10*time.Second {
		t.Errorf("tool_timeout: got %s", cfg.Engine.ToolTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Delay != time.Second {
		t.Errorf("retry: got %+v", cfg.Retry)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("session store: got %s", cfg.Session.Store)
	}
	if cfg.Session.TTL != 0 {
		t.Errorf("session ttl: got %s, want 0", cfg.Session.TTL)
	}
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("exporter: got %s", cfg.Telemetry.Exporter)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
llm:
  provider: ollama
  model: llama3
engine:
  max_handoffs: 2
  reasoning_timeout: 5s
session:
  store: sqlite
  sqlite_path: /tmp/s.db
  ttl: 1h
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("llm: got %+v", cfg.LLM)
	}
	if cfg.Engine.MaxHandoffs != 2 {
		t.Errorf("max_handoffs: got %d, want 2", cfg.Engine.MaxHandoffs)
	}
	if cfg.Engine.ReasoningTimeout != 5*time.Second {
		t.Errorf("reasoning_timeout: got %s", cfg.Engine.ReasoningTimeout)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Engine.MaxToolIterations != 5 {
		t.Errorf("max_tool_iterations: got %d, want 5", cfg.Engine.MaxToolIterations)
	}
	if cfg.Session.Store != "sqlite" || cfg.Session.SQLitePath != "/tmp/s.db" || cfg.Session.TTL != time.Hour {
		t.Errorf("session: got %+v", cfg.Session)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SWARM_LLM_PROVIDER", "ollama")
	t.Setenv("SWARM_ENGINE_MAX_TOOL_ITERATIONS", "2")
	t.Setenv("SWARM_ENGINE_SINGLE_STEP", "true")
	t.Setenv("SWARM_SESSION_REDIS_ADDR", "redis:6380")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider: got %s", cfg.LLM.Provider)
	}
	if cfg.Engine.MaxToolIterations != 2 {
		t.Errorf("max_tool_iterations: got %d", cfg.Engine.MaxToolIterations)
	}
	if !cfg.Engine.SingleStep {
		t.Error("single_step: expected true")
	}
	if cfg.Session.RedisAddr != "redis:6380" {
		t.Errorf("redis_addr: got %s", cfg.Session.RedisAddr)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SWARM_LOG_LEVEL":                  "log.level",
		"SWARM_ENGINE_MAX_TOOL_ITERATIONS": "engine.max_tool_iterations",
		"SWARM_SESSION_SQLITE_PATH":        "session.sqlite_path",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%s): got %s, want %s", in, got, want)
		}
	}
}

func TestLoadWithProfile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(base, []byte("llm:\n  provider: ollama\n  model: base\n"), 0644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.dev.yaml"), []byte("llm:\n  model: dev\n"), 0644); err != nil {
		t.Fatalf("write dev: %v", err)
	}

	cfg, err := LoadWithProfile(base, "dev")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "dev" {
		t.Errorf("llm: got %+v", cfg.LLM)
	}

	// An unknown profile leaves the base untouched.
	cfg, err = LoadWithProfile(base, "prod")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.LLM.Model != "base" {
		t.Errorf("model: got %s, want base", cfg.LLM.Model)
	}
}

func TestProfileConfigPath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "swarm.yml")
	overlay := filepath.Join(dir, "swarm.staging.yml")
	if err := os.WriteFile(overlay, []byte("{}"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := profileConfigPath(base, "staging"); got != overlay {
		t.Errorf("got %s, want %s", got, overlay)
	}
	if got := profileConfigPath(base, "dev"); got != "" {
		t.Errorf("missing overlay: got %s", got)
	}
	if got := profileConfigPath("", "dev"); got != "" {
		t.Errorf("empty base: got %s", got)
	}
	if got := profileConfigPath(base, ""); got != "" {
		t.Errorf("empty profile: got %s", got)
	}
}

func TestLoadWithCLI(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(base, []byte("engine:\n  max_handoffs: 2\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.dev.yaml"), []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SWARM_ENGINE_MAX_HANDOFFS", "6")

	cfg, err := LoadWithCLI([]string{
		"run",
		"--config", base,
		"--profile=dev",
		"--set", "engine.max_handoffs=4",
		"--set=engine.single_step=true",
		"--set", "engine.tool_timeout=250ms",
		"--set", "session.redis_prefix=test:",
		"some text",
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level: got %s, want debug", cfg.Log.Level)
	}
	// --set wins over file and environment.
	if cfg.Engine.MaxHandoffs != 4 {
		t.Errorf("max_handoffs: got %d, want 4", cfg.Engine.MaxHandoffs)
	}
	if !cfg.Engine.SingleStep {
		t.Error("single_step: expected true")
	}
	if cfg.Engine.ToolTimeout != 250*time.Millisecond {
		t.Errorf("tool_timeout: got %s", cfg.Engine.ToolTimeout)
	}
	if cfg.Session.RedisPrefix != "test:" {
		t.Errorf("redis_prefix: got %s", cfg.Session.RedisPrefix)
	}
}

func TestParseCLIOverrides(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantPath string
		wantSets map[string]any
		wantErr  bool
	}{
		{
			name:     "config and set",
			args:     []string{"--config", "a.yaml", "--set", "llm.model=x"},
			wantPath: "a.yaml",
			wantSets: map[string]any{"llm.model": "x"},
		},
		{
			name:     "json values",
			args:     []string{"--set", "engine.max_handoffs=3", "--set", "telemetry.otlp_insecure=false"},
			wantSets: map[string]any{"engine.max_handoffs": float64(3), "telemetry.otlp_insecure": false},
		},
		{
			name:     "other flags ignored",
			args:     []string{"--session", "s1", "-v", "--config=b.yaml"},
			wantPath: "b.yaml",
			wantSets: map[string]any{},
		},
		{name: "missing value", args: []string{"--set"}, wantErr: true},
		{name: "missing equals", args: []string{"--set", "llm.model"}, wantErr: true},
		{name: "empty key", args: []string{"--set", "=x"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path, sets, err := parseCLIOverrides(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path != tc.wantPath {
				t.Errorf("path: got %q, want %q", path, tc.wantPath)
			}
			if len(sets) != len(tc.wantSets) {
				t.Fatalf("sets: got %v, want %v", sets, tc.wantSets)
			}
			for k, want := range tc.wantSets {
				if sets[k] != want {
					t.Errorf("sets[%s]: got %v (%T), want %v (%T)", k, sets[k], sets[k], want, want)
				}
			}
		})
	}
}
