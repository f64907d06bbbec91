// Package config loads swarm settings from defaults, a YAML file with an
// optional profile overlay, SWARM_* environment variables and CLI overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SWARM_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Engine    EngineConfig    `koanf:"engine"`
	Retry     RetryConfig     `koanf:"retry"`
	Session   SessionConfig   `koanf:"session"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider         string        `koanf:"provider"` // triage, ollama, openai
	Model            string        `koanf:"model"`
	// BaseURL overrides the provider endpoint. Empty means the provider default.
	BaseURL          string        `koanf:"base_url"`
	// APIKey is sent to hosted providers. Empty means OPENAI_API_KEY.
	APIKey           string        `koanf:"api_key"`
	Temperature      float64       `koanf:"temperature"`
	BreakerThreshold int           `koanf:"breaker_threshold"` // 0 disables the breaker
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

type EngineConfig struct {
	// Manifest points to an agents YAML file replacing the built-in roster.
	Manifest          string        `koanf:"manifest"`
	DefaultAgent      string        `koanf:"default_agent"`
	MaxToolIterations int           `koanf:"max_tool_iterations"`
	MaxHandoffs       int           `koanf:"max_handoffs"`
	ReasoningTimeout  time.Duration `koanf:"reasoning_timeout"`
	ToolTimeout       time.Duration `koanf:"tool_timeout"`
	SingleStep        bool          `koanf:"single_step"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Delay       time.Duration `koanf:"delay"`
}

type SessionConfig struct {
	Store         string        `koanf:"store"` // memory, file, sqlite, redis
	Dir           string        `koanf:"dir"`
	SQLitePath    string        `koanf:"sqlite_path"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	RedisPrefix   string        `koanf:"redis_prefix"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func setDefaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("llm.provider", "triage")
	k.Set("llm.model", "qwen2.5:7b-instruct")
	k.Set("llm.base_url", "")
	k.Set("llm.temperature", 0.0)
	k.Set("llm.breaker_threshold", 5)
	k.Set("llm.breaker_cooldown", 30*time.Second)

	k.Set("engine.default_agent", "EmergencyCoordinator")
	k.Set("engine.max_tool_iterations", 5)
	k.Set("engine.max_handoffs", 10)
	k.Set("engine.reasoning_timeout", 60*time.Second)
	k.Set("engine.tool_timeout", 10*time.Second)
	k.Set("engine.single_step", false)

	k.Set("retry.max_attempts", 3)
	k.Set("retry.delay", time.Second)

	k.Set("session.store", "memory")
	k.Set("session.dir", ".swarm/sessions")
	k.Set("session.sqlite_path", ".swarm/sessions.db")
	k.Set("session.redis_addr", "localhost:6379")
	k.Set("session.redis_prefix", "swarm:session:")
	k.Set("session.ttl", time.Duration(0))
	k.Set("session.sweep_interval", time.Duration(0))

	k.Set("telemetry.exporter", "none")
	k.Set("telemetry.otlp_endpoint", "localhost:4317")
	k.Set("telemetry.otlp_insecure", true)
}

// Load reads defaults, the file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile is Load with a profile overlay: for config.yaml and
// profile "dev", config.dev.yaml is merged on top when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI understands --config PATH, --profile NAME and repeated
// --set key=value (values may be JSON). Overrides win over everything.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, sets, err := parseArgs(args)
	if err != nil {
		return nil, err
	}
	return load(path, profile, sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if overlay := profileConfigPath(path, profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", overlay, err)
			}
		}
	}

	// SWARM_ENGINE_MAX_TOOL_ITERATIONS -> engine.max_tool_iterations
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range sets {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// parseCLIOverrides extracts --config and --set flags from args.
func parseCLIOverrides(args []string) (string, map[string]any, error) {
	path, _, sets, err := parseArgs(args)
	return path, sets, err
}

func parseArgs(args []string) (path, profile string, sets map[string]any, err error) {
	sets = map[string]any{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, inline := strings.Cut(arg, "=")
		if !strings.HasPrefix(name, "--") {
			continue
		}
		switch name {
		case "--config", "--profile", "--set":
		default:
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			path = value
		case "--profile":
			profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return "", "", nil, fmt.Errorf("invalid --set %q: expected key=value", value)
			}
			sets[strings.TrimSpace(key)] = parseValue(raw)
		}
	}
	return path, profile, sets, nil
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
