package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/screeps-adapter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View screeps-adapter configuration",
	Long: `View screeps-adapter configuration.

Without arguments, displays the current configuration.
Use subcommands to create a config file or locate it.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/screeps-adapter/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// defaultConfigFile is written by 'config init'. Keep it in sync with
// config.Default.
const defaultConfigFile = `# screeps-adapter configuration

# How to reach the Screeps client
scope:
  # Driver: cdp (browser tab over DevTools), ws (page shim), js (scripted scenario)
  driver: cdp
  cdp:
    # DevTools endpoint of a browser started with --remote-debugging-port=9222
    url: http://127.0.0.1:9222
    # Glob matched against tab URLs; the first matching tab is used
    target: https://screeps.com/*
  js:
    # Scenario file for offline runs
    script: ""
    # Delay between scenario steps in milliseconds
    step_interval_ms: 500
  ws:
    # Address the page shim connects to (see 'screeps-adapter shim')
    listen: 127.0.0.1:8787
    # Glob matched against the page's Origin header (empty = any)
    origin: ""
    # Timeout of service and storage round trips in seconds
    call_timeout_seconds: 10

# Change detection
bridge:
  # How often watched values are compared in milliseconds
  digest_interval_ms: 250
  # Interval of readiness waits in milliseconds
  poll_interval_ms: 50
  # Give up waiting for the client after this many seconds (0 = wait forever)
  ready_timeout_seconds: 0
  # Views that show a room; selection changes are tracked on these
  room_views:
    - top.game-room
    - top.sim-custom
    - top.sim-survival
    - top.sim-tutorial

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Directory of adapter.log (empty = stderr)
  dir: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to point screeps-adapter at your client.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. $HOME/.config/screeps-adapter/config.yaml")
	fmt.Fprintln(out, "  3. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: SCREEPS_ADAPTER_* (e.g., SCREEPS_ADAPTER_SCOPE_DRIVER)")
	return nil
}
