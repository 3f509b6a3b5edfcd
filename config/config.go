package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Execution modes
const (
	ModeContainer = "container"
	ModeDirect    = "direct"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Container ContainerConfig `mapstructure:"container"`
	Direct    DirectConfig    `mapstructure:"direct"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport          string `mapstructure:"transport"`
	Port               int    `mapstructure:"port"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
}

// SandboxConfig holds the execution settings shared by both strategies
type SandboxConfig struct {
	Mode             string `mapstructure:"mode"`
	TimeoutMS        int    `mapstructure:"timeout_ms"`
	KillGraceMS      int    `mapstructure:"kill_grace_ms"`
	MaxOutputBytes   int64  `mapstructure:"max_output_bytes"`
	WorkspaceRoot    string `mapstructure:"workspace_root"`
	NetworkEnabled   bool   `mapstructure:"network_enabled"`
	SweepIntervalSec int    `mapstructure:"sweep_interval_sec"`
	SweepMaxAgeSec   int    `mapstructure:"sweep_max_age_sec"`
}

// ContainerConfig holds settings for the containerized strategy
type ContainerConfig struct {
	Runtime   string `mapstructure:"runtime"`
	Image     string `mapstructure:"image"`
	MountPath string `mapstructure:"mount_path"`
}

// DirectConfig holds host toolchain naming for the direct-host strategy
type DirectConfig struct {
	Shell            []string `mapstructure:"shell"`
	Compiler         string   `mapstructure:"compiler"`
	Python           string   `mapstructure:"python"`
	ExecutableSuffix string   `mapstructure:"executable_suffix"`
	RunPrefix        string   `mapstructure:"run_prefix"`
}

// MCPConfig holds settings for the MCP tool surface
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from config.yaml
// in the working directory or ./config, falling back to defaults.
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return load(v)
}

// NewFromFile loads the configuration from an explicit file path.
func NewFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("runbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names still set by existing deployments
	_ = v.BindEnv("sandbox.mode", "RUNBOX_SANDBOX_MODE", "EXECUTION_MODE")
	_ = v.BindEnv("server.port", "RUNBOX_SERVER_PORT", "PORT")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout_sec", 10)

	v.SetDefault("sandbox.mode", ModeContainer)
	v.SetDefault("sandbox.timeout_ms", 5000)
	v.SetDefault("sandbox.kill_grace_ms", 500)
	v.SetDefault("sandbox.max_output_bytes", 1<<20)
	v.SetDefault("sandbox.workspace_root", filepath.Join(os.TempDir(), "runbox-workspaces"))
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.sweep_interval_sec", 0)
	v.SetDefault("sandbox.sweep_max_age_sec", 600)

	v.SetDefault("container.runtime", "docker")
	v.SetDefault("container.image", "ide-runner")
	v.SetDefault("container.mount_path", "/usr/src/app")

	// Host toolchain naming differs on windows
	if runtime.GOOS == "windows" {
		v.SetDefault("direct.shell", []string{"cmd", "/C"})
		v.SetDefault("direct.python", "python")
		v.SetDefault("direct.executable_suffix", ".exe")
		v.SetDefault("direct.run_prefix", `.\`)
	} else {
		v.SetDefault("direct.shell", []string{"sh", "-c"})
		v.SetDefault("direct.python", "python3")
		v.SetDefault("direct.executable_suffix", "")
		v.SetDefault("direct.run_prefix", "./")
	}
	v.SetDefault("direct.compiler", "g++")

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.path", "/mcp")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// EXECUTION_MODE=docker is accepted as an alias
	if config.Sandbox.Mode == "docker" {
		config.Sandbox.Mode = ModeContainer
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}

	if c.Server.Transport == "stdio" && !c.MCP.Enabled {
		return fmt.Errorf("server.transport 'stdio' requires mcp.enabled")
	}

	if c.Sandbox.Mode != ModeContainer && c.Sandbox.Mode != ModeDirect {
		return fmt.Errorf("invalid sandbox.mode: %s, must be '%s' or '%s'", c.Sandbox.Mode, ModeContainer, ModeDirect)
	}

	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got: %d", c.Sandbox.TimeoutMS)
	}

	if c.Sandbox.KillGraceMS < 0 {
		return fmt.Errorf("sandbox.kill_grace_ms must not be negative, got: %d", c.Sandbox.KillGraceMS)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.WorkspaceRoot == "" {
		return fmt.Errorf("sandbox.workspace_root must be set")
	}

	if c.Sandbox.SweepIntervalSec < 0 || c.Sandbox.SweepMaxAgeSec < 0 {
		return fmt.Errorf("sandbox sweep settings must not be negative")
	}

	// A running job's workspace must never look old enough to sweep
	if c.Sandbox.SweepIntervalSec > 0 && c.GetSweepMaxAge() <= c.GetTimeout()+c.GetKillGrace() {
		return fmt.Errorf("sandbox.sweep_max_age_sec must exceed the execution timeout plus kill grace (%s), got: %ds",
			c.GetTimeout()+c.GetKillGrace(), c.Sandbox.SweepMaxAgeSec)
	}

	if c.Sandbox.Mode == ModeContainer {
		if c.Container.Runtime != "docker" && c.Container.Runtime != "podman" {
			return fmt.Errorf("unsupported container.runtime: %s", c.Container.Runtime)
		}
		if c.Container.Image == "" {
			return fmt.Errorf("container.image must be set")
		}
	}

	if c.Sandbox.Mode == ModeDirect && len(c.Direct.Shell) == 0 {
		return fmt.Errorf("direct.shell must be set")
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("invalid mcp.path: %q, must start with '/'", c.MCP.Path)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMS) * time.Millisecond
}

// GetKillGrace returns how long to wait for pipes after the process group is killed
func (c *Config) GetKillGrace() time.Duration {
	return time.Duration(c.Sandbox.KillGraceMS) * time.Millisecond
}

// GetShutdownTimeout returns the HTTP graceful shutdown budget
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// GetSweepInterval returns how often orphaned workspaces are swept, zero when disabled
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Sandbox.SweepIntervalSec) * time.Second
}

// GetSweepMaxAge returns the age after which a leftover workspace is removed
func (c *Config) GetSweepMaxAge() time.Duration {
	return time.Duration(c.Sandbox.SweepMaxAgeSec) * time.Second
}
