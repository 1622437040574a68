package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ProjectDir is the per-project state directory.
const ProjectDir = ".stepgraph"

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// StoreBackend selects where run results are persisted.
type StoreBackend string

const (
	StoreBackendFile  StoreBackend = "file"
	StoreBackendRedis StoreBackend = "redis"
)

// PathsConfig holds path configuration.
type PathsConfig struct {
	WorkflowsDir string `toml:"workflows_dir"`
	RunsDir      string `toml:"runs_dir"`
	LogsDir      string `toml:"logs_dir"`
}

// DefaultsConfig holds values applied to steps that omit them.
type DefaultsConfig struct {
	Profile     string        `toml:"profile"`
	StepTimeout time.Duration `toml:"step_timeout"`
}

// OrchestratorConfig holds executor settings.
type OrchestratorConfig struct {
	// MaxConcurrency caps how many steps of one layer run at once. 0 means unbounded.
	MaxConcurrency int `toml:"max_concurrency"`

	// StrictReferences rejects templates that reference steps outside the
	// referencing step's transitive dependencies.
	StrictReferences bool `toml:"strict_references"`

	// CancelGrace is how long a runner process gets between SIGTERM and SIGKILL.
	CancelGrace time.Duration `toml:"cancel_grace"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// StoreConfig holds run persistence settings.
type StoreConfig struct {
	Backend       StoreBackend `toml:"backend"`
	RedisAddr     string       `toml:"redis_addr"`
	RedisPassword string       `toml:"redis_password"`
	RedisDB       int          `toml:"redis_db"`
	RedisPrefix   string       `toml:"redis_prefix"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	// Endpoint overrides OTEL_EXPORTER_OTLP_ENDPOINT when set.
	Endpoint string `toml:"endpoint"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// ProfileConfig maps an agent profile to the command that serves it.
type ProfileConfig struct {
	Command string            `toml:"command"`
	Workdir string            `toml:"workdir"`
	Env     map[string]string `toml:"env"`
}

// Config is the main configuration struct for stepgraph.
type Config struct {
	Version      string                   `toml:"version"`
	Paths        PathsConfig              `toml:"paths"`
	Defaults     DefaultsConfig           `toml:"defaults"`
	Orchestrator OrchestratorConfig       `toml:"orchestrator"`
	Logging      LoggingConfig            `toml:"logging"`
	Store        StoreConfig              `toml:"store"`
	Tracing      TracingConfig            `toml:"tracing"`
	Server       ServerConfig             `toml:"server"`
	Profiles     map[string]ProfileConfig `toml:"profiles"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Paths: PathsConfig{
			WorkflowsDir: ProjectDir + "/workflows",
			RunsDir:      ProjectDir + "/runs",
			LogsDir:      ProjectDir + "/logs",
		},
		Defaults: DefaultsConfig{
			Profile:     "default",
			StepTimeout: 300 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:   4,
			StrictReferences: true,
			CancelGrace:      5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
			File:   "", // Per-run logs in .stepgraph/logs/<run-id>.log
		},
		Store: StoreConfig{
			Backend:     StoreBackendFile,
			RedisPrefix: "stepgraph",
		},
		Tracing: TracingConfig{
			ServiceName: "stepgraph",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Profiles: map[string]ProfileConfig{},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.stepgraph/config.toml -> .stepgraph/config.toml
// Later configs override earlier ones (project-level takes precedence).
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ProjectDir, "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, ProjectDir, "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if c.Paths.WorkflowsDir == "" {
		return fmt.Errorf("workflows_dir is required")
	}
	if c.Paths.RunsDir == "" {
		return fmt.Errorf("runs_dir is required")
	}
	if c.Defaults.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be positive")
	}
	if c.Orchestrator.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative")
	}
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	switch c.Store.Backend {
	case StoreBackendFile:
	case StoreBackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for name, p := range c.Profiles {
		if p.Command == "" {
			return fmt.Errorf("profile %q has no command", name)
		}
	}
	return nil
}

// Profile returns the runner settings for name, falling back to the default profile.
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	if p, ok := c.Profiles[name]; ok {
		return p, true
	}
	p, ok := c.Profiles[c.Defaults.Profile]
	return p, ok
}

// WorkflowsDir returns the absolute workflow definitions directory path.
func (c *Config) WorkflowsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.WorkflowsDir)
}

// RunsDir returns the absolute runs directory path.
func (c *Config) RunsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.RunsDir)
}

// LogsDir returns the absolute logs directory path.
func (c *Config) LogsDir(baseDir string) string {
	return resolve(baseDir, c.Paths.LogsDir)
}

// LogFile returns the absolute path of the configured log file, or "" if unset.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	return resolve(baseDir, c.Logging.File)
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
