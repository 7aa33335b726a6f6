package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/screeps-adapter/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "screeps-adapter",
	Short: "Event bridge for the Screeps web client",
	Long: `screeps-adapter attaches to a running Screeps web client and turns its
internal state into change events: the current view, the URL fragment, the
room being looked at and the selected object.

The client is reached through a driver:
  cdp  a browser tab over the Chrome DevTools Protocol
  ws   a page shim connecting over a WebSocket (see 'screeps-adapter shim')
  js   a scripted scenario for offline use`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/screeps-adapter/config.yaml)")
	rootCmd.PersistentFlags().StringP("driver", "d", "", "client driver: cdp, js or ws")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	bindFlags()
}

// bindFlags connects the global flags to their config keys.
func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("scope.driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/screeps-adapter")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCREEPS_ADAPTER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SCREEPS_ADAPTER_SCOPE_CDP_URL for scope.cdp.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
