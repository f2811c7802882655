package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// ManifestPath points to the game manifest file.
	ManifestPath string `yaml:"manifest"`

	// PublicDir is the root of the served artifact tree, one subdirectory per game.
	PublicDir string `yaml:"public_dir"`

	// StateDir holds durable state surviving runs: the version record database
	// and, when clone reuse is enabled, the persistent clone cache.
	StateDir string `yaml:"state_dir"`

	// WorkspaceDir is the scratch root for per-run working copies.
	// Defaults to the system temp directory.
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`

	// Workers bounds concurrent per-game pipelines.
	Workers int `yaml:"workers,omitempty"`

	Build     BuildConfig     `yaml:"build"`
	Site      SiteConfig      `yaml:"site"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty"`
}

// BuildConfig controls external build command execution.
type BuildConfig struct {
	// Timeout bounds one build command invocation.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// KeepClones reuses working copies across runs (incremental fetch instead of full clone).
	KeepClones bool `yaml:"keep_clones,omitempty"`
}

// SiteConfig feeds the index page generator.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// ThumbnailConfig configures the optional post-publish thumbnail hook.
// The command is invoked with the public game directory and the size appended
// as arguments; failures never affect publish status.
type ThumbnailConfig struct {
	Command string `yaml:"command,omitempty"`
	Size    string `yaml:"size,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// DaemonConfig controls the periodic runner.
type DaemonConfig struct {
	// Interval between scheduled runs.
	Interval time.Duration `yaml:"interval,omitempty"`

	// WatchManifest triggers an extra run when the manifest file changes.
	WatchManifest bool `yaml:"watch_manifest,omitempty"`

	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// EventsConfig configures optional NATS outcome publication.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env file if present; missing files are not an error.
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ManifestPath == "" {
		c.ManifestPath = "games.yaml"
	}
	if c.PublicDir == "" {
		c.PublicDir = "./public"
	}
	if c.StateDir == "" {
		c.StateDir = "./state"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Build.Timeout <= 0 {
		c.Build.Timeout = 10 * time.Minute
	}
	if c.Site.Title == "" {
		c.Site.Title = "Games"
	}
	if c.Thumbnail.Size == "" {
		c.Thumbnail.Size = "320x240"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = 30 * time.Minute
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "arcade"
	}
}

// Validate checks configuration values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.PublicDir == c.StateDir {
		return fmt.Errorf("public_dir and state_dir must differ: %s", c.PublicDir)
	}
	if c.Workers > 64 {
		return fmt.Errorf("workers out of range (1-64): %d", c.Workers)
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		ManifestPath: "games.yaml",
		PublicDir:    "./public",
		StateDir:     "./state",
		Workers:      4,
		Build: BuildConfig{
			Timeout:    10 * time.Minute,
			KeepClones: true,
		},
		Site: SiteConfig{
			Title:       "Arcade",
			Description: "Browser games built from source",
			BaseURL:     "https://games.example.com",
		},
		Daemon: DaemonConfig{
			Interval:      30 * time.Minute,
			WatchManifest: true,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
