package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a pillars workspace.
type Config struct {
	Version int    `yaml:"version"`
	Store   Store  `yaml:"store"`
	AI      AI     `yaml:"ai"`
	Limits  Limits `yaml:"limits"`
	Audit   Audit  `yaml:"audit"`
	Log     Log    `yaml:"log"`
}

// Store says where the dataset lives and how often it is written.
type Store struct {
	Path       string `yaml:"path"`                  // SQLite file, relative to the workspace
	Key        string `yaml:"key"`                   // blob key inside the database
	DebounceMS int    `yaml:"debounce_ms,omitempty"` // quiet period before a save
}

// AI describes the text-generation backend used for coaching.
type AI struct {
	Enabled     bool     `yaml:"enabled"`
	Mode        string   `yaml:"mode"`                  // "cli" or "api"
	Cmd         string   `yaml:"cmd,omitempty"`         // CLI command to spawn
	Args        []string `yaml:"args,omitempty"`        // CLI arguments
	Provider    string   `yaml:"provider,omitempty"`    // ollama, openai, anthropic, google
	Model       string   `yaml:"model,omitempty"`       // model name
	Endpoint    string   `yaml:"endpoint,omitempty"`    // base URL override
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"` // env var holding the API key
	TimeoutSec  int      `yaml:"timeout_sec,omitempty"` // 0 = default 20
	Temperature float64  `yaml:"temperature,omitempty"`
	TopP        float64  `yaml:"top_p,omitempty"`
	NumPredict  int      `yaml:"num_predict,omitempty"` // max tokens to generate
	MaxLen      int      `yaml:"max_len,omitempty"`     // max characters kept from a reply
}

// Limits bounds the dataset.
type Limits struct {
	MaxActiveGoals int `yaml:"max_active_goals"`
	HistoryLimit   int `yaml:"history_limit"`
	GraceDays      int `yaml:"grace_days"`
}

// Audit configures the periodic stuck-task check of `pillars watch`.
type Audit struct {
	EveryMin int `yaml:"every_min"`
}

// Log configures debug logging.
type Log struct {
	Debug    bool   `yaml:"debug,omitempty"`
	File     string `yaml:"file,omitempty"`
	MaxFiles int    `yaml:"max_files,omitempty"`
}

// EffectiveArgs returns the final args for a CLI backend. Known local model
// tools get the arguments that make them print one reply and exit:
//   - ollama: run <model>
//   - llm:    -m <model>
//   - claude: --print
//
// Args already present in the config are not repeated.
func (a AI) EffectiveArgs() []string {
	if a.Mode != "cli" {
		return a.Args
	}

	args := make([]string, len(a.Args))
	copy(args, a.Args)

	switch a.Cmd {
	case "ollama":
		if !containsAny(args, "run") {
			model := a.Model
			if model == "" {
				model = "llama3.2"
			}
			args = append([]string{"run", model}, args...)
		}
	case "llm":
		if a.Model != "" && !containsAny(args, "-m", "--model") {
			args = append([]string{"-m", a.Model}, args...)
		}
	case "claude":
		if !containsAny(args, "-p", "--print") {
			args = appendFront(args, "--print")
		}
	}

	return args
}

// DefaultTimeout returns the effective timeout in seconds.
func (a AI) DefaultTimeout() int {
	if a.TimeoutSec > 0 {
		return a.TimeoutSec
	}
	return 20
}

// Debounce returns the save quiet period.
func (s Store) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config: SQLite next to the config, AI off
// and pointed at a local ollama.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Store: Store{
			Path:       "pillars.db",
			Key:        "pillars-state",
			DebounceMS: 500,
		},
		AI: AI{
			Mode:        "api",
			Provider:    "ollama",
			Model:       "llama3.2",
			TimeoutSec:  20,
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  160,
			MaxLen:      600,
		},
		Limits: Limits{
			MaxActiveGoals: 3,
			HistoryLimit:   500,
			GraceDays:      3,
		},
		Audit: Audit{EveryMin: 60},
		Log:   Log{MaxFiles: 20},
	}
}

// applyDefaults fills values a hand-edited file left at zero.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Store.Key == "" {
		c.Store.Key = def.Store.Key
	}
	if c.Store.DebounceMS <= 0 {
		c.Store.DebounceMS = def.Store.DebounceMS
	}
	if c.AI.Mode == "" {
		c.AI.Mode = def.AI.Mode
	}
	if c.AI.Mode == "api" && c.AI.Provider == "" {
		c.AI.Provider = def.AI.Provider
	}
	if c.AI.MaxLen <= 0 {
		c.AI.MaxLen = def.AI.MaxLen
	}
	if c.Limits.MaxActiveGoals <= 0 {
		c.Limits.MaxActiveGoals = def.Limits.MaxActiveGoals
	}
	if c.Limits.HistoryLimit <= 0 {
		c.Limits.HistoryLimit = def.Limits.HistoryLimit
	}
	if c.Limits.GraceDays <= 0 {
		c.Limits.GraceDays = def.Limits.GraceDays
	}
	if c.Audit.EveryMin <= 0 {
		c.Audit.EveryMin = def.Audit.EveryMin
	}
}

func (c *Config) validate() error {
	ai := c.AI
	if ai.Mode != "cli" && ai.Mode != "api" {
		return fmt.Errorf("ai: mode must be 'cli' or 'api', got %q", ai.Mode)
	}
	if ai.Mode == "cli" && ai.Cmd == "" {
		return fmt.Errorf("ai: cmd is required for cli mode")
	}
	if ai.Mode == "api" {
		switch ai.Provider {
		case "ollama", "openai", "anthropic", "google":
		default:
			return fmt.Errorf("ai: unsupported provider %q", ai.Provider)
		}
	}
	if ai.Temperature < 0 || ai.Temperature > 2 {
		return fmt.Errorf("ai: temperature must be between 0 and 2, got %v", ai.Temperature)
	}
	if ai.TopP < 0 || ai.TopP > 1 {
		return fmt.Errorf("ai: top_p must be between 0 and 1, got %v", ai.TopP)
	}
	if c.Limits.HistoryLimit > 10000 {
		return fmt.Errorf("limits: history_limit %d is too large (max 10000)", c.Limits.HistoryLimit)
	}
	return nil
}

// containsAny checks if any of the targets exist in the slice.
func containsAny(slice []string, targets ...string) bool {
	for _, s := range slice {
		for _, t := range targets {
			if s == t {
				return true
			}
		}
	}
	return false
}

// appendFront inserts a value at the beginning of a slice.
func appendFront(slice []string, val string) []string {
	return append([]string{val}, slice...)
}
