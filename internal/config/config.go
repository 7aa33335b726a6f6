package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete screeps-adapter configuration
type Config struct {
	Scope   ScopeConfig   `mapstructure:"scope" yaml:"scope"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ScopeConfig selects and configures the client driver
type ScopeConfig struct {
	// Driver is the client driver to attach with
	// Options: "cdp", "js", "ws"
	Driver string    `mapstructure:"driver" yaml:"driver"`
	CDP    CDPConfig `mapstructure:"cdp" yaml:"cdp"`
	JS     JSConfig  `mapstructure:"js" yaml:"js"`
	WS     WSConfig  `mapstructure:"ws" yaml:"ws"`
}

// CDPConfig controls the Chrome DevTools Protocol driver
type CDPConfig struct {
	// URL is the browser's DevTools endpoint (start the browser with --remote-debugging-port)
	URL string `mapstructure:"url" yaml:"url"`
	// Target is a glob matched against tab URLs; the first matching tab is used
	Target string `mapstructure:"target" yaml:"target"`
}

// JSConfig controls the scripted scenario driver
type JSConfig struct {
	// Script is the path of the scenario file
	Script string `mapstructure:"script" yaml:"script"`
	// StepIntervalMs is the delay between scenario steps in milliseconds
	StepIntervalMs int `mapstructure:"step_interval_ms" yaml:"step_interval_ms"`
}

// WSConfig controls the WebSocket driver
type WSConfig struct {
	// Listen is the address the page shim connects to
	Listen string `mapstructure:"listen" yaml:"listen"`
	// Origin is a glob matched against the page's Origin header (empty = any)
	Origin string `mapstructure:"origin" yaml:"origin"`
	// CallTimeoutSeconds bounds service and storage round trips
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
}

// BridgeConfig controls change detection and readiness
type BridgeConfig struct {
	// DigestIntervalMs is how often watches are evaluated in milliseconds
	DigestIntervalMs int `mapstructure:"digest_interval_ms" yaml:"digest_interval_ms"`
	// PollIntervalMs is the interval of readiness waits in milliseconds
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	// ReadyTimeoutSeconds bounds waiting for the client (0 = wait forever)
	ReadyTimeoutSeconds int `mapstructure:"ready_timeout_seconds" yaml:"ready_timeout_seconds"`
	// RoomViews are glob patterns of views that show a room
	RoomViews []string `mapstructure:"room_views" yaml:"room_views"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory of adapter.log; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Driver names.
const (
	DriverCDP = "cdp"
	DriverJS  = "js"
	DriverWS  = "ws"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scope: ScopeConfig{
			Driver: DriverCDP,
			CDP: CDPConfig{
				URL:    "http://127.0.0.1:9222",
				Target: "https://screeps.com/*",
			},
			JS: JSConfig{
				Script:         "",
				StepIntervalMs: 500,
			},
			WS: WSConfig{
				Listen:             "127.0.0.1:8787",
				Origin:             "",
				CallTimeoutSeconds: 10,
			},
		},
		Bridge: BridgeConfig{
			DigestIntervalMs:    250,
			PollIntervalMs:      50,
			ReadyTimeoutSeconds: 0, // Wait forever by default
			RoomViews: []string{
				"top.game-room",
				"top.sim-custom",
				"top.sim-survival",
				"top.sim-tutorial",
			},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "", // Empty means stderr
		},
	}
}

// StepInterval returns the scenario step interval as a time.Duration
func (c *JSConfig) StepInterval() time.Duration {
	return time.Duration(c.StepIntervalMs) * time.Millisecond
}

// CallTimeout returns the round-trip timeout as a time.Duration
func (c *WSConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// DigestInterval returns the digest interval as a time.Duration
func (c *BridgeConfig) DigestInterval() time.Duration {
	return time.Duration(c.DigestIntervalMs) * time.Millisecond
}

// PollInterval returns the readiness poll interval as a time.Duration
func (c *BridgeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ReadyTimeout returns the readiness timeout as a time.Duration (0 means wait forever)
func (c *BridgeConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scope defaults
	viper.SetDefault("scope.driver", defaults.Scope.Driver)
	viper.SetDefault("scope.cdp.url", defaults.Scope.CDP.URL)
	viper.SetDefault("scope.cdp.target", defaults.Scope.CDP.Target)
	viper.SetDefault("scope.js.script", defaults.Scope.JS.Script)
	viper.SetDefault("scope.js.step_interval_ms", defaults.Scope.JS.StepIntervalMs)
	viper.SetDefault("scope.ws.listen", defaults.Scope.WS.Listen)
	viper.SetDefault("scope.ws.origin", defaults.Scope.WS.Origin)
	viper.SetDefault("scope.ws.call_timeout_seconds", defaults.Scope.WS.CallTimeoutSeconds)

	// Bridge defaults
	viper.SetDefault("bridge.digest_interval_ms", defaults.Bridge.DigestIntervalMs)
	viper.SetDefault("bridge.poll_interval_ms", defaults.Bridge.PollIntervalMs)
	viper.SetDefault("bridge.ready_timeout_seconds", defaults.Bridge.ReadyTimeoutSeconds)
	viper.SetDefault("bridge.room_views", defaults.Bridge.RoomViews)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "screeps-adapter")
	}
	// Fall back to ~/.config/screeps-adapter
	home, err := os.UserHomeDir()
	if err != nil {
		return ".screeps-adapter"
	}
	return filepath.Join(home, ".config", "screeps-adapter")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidDrivers returns the list of valid scope drivers
func ValidDrivers() []string {
	return []string{DriverCDP, DriverJS, DriverWS}
}

// IsValidDriver checks if the given driver is valid
func IsValidDriver(driver string) bool {
	return slices.Contains(ValidDrivers(), driver)
}
