package cmd

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/config"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/wsscope"
)

var shimCmd = &cobra.Command{
	Use:   "shim",
	Short: "Print the page script for the ws driver",
	Long: `Print the script that connects the client page to the ws driver. Paste it
into the browser console or install it as a userscript, then run a command with
--driver ws.`,
	Args: cobra.NoArgs,
	RunE: runShim,
}

var (
	shimInterval time.Duration
	shimCopy     bool
)

func init() {
	rootCmd.AddCommand(shimCmd)
	shimCmd.Flags().DurationVar(&shimInterval, "interval", wsscope.DefaultPushInterval, "how often the page checks for state changes")
	shimCmd.Flags().BoolVar(&shimCopy, "copy", false, "copy the script to the clipboard instead of printing it")
}

func runShim(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Scope.WS.Listen == "" {
		return fmt.Errorf("scope.ws.listen is not set")
	}
	script := wsscope.Shim("ws://"+cfg.Scope.WS.Listen+"/", shimInterval)
	if shimCopy {
		if err := clipboard.WriteAll(script); err != nil {
			return fmt.Errorf("failed to copy to the clipboard: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Shim copied to the clipboard. Paste it into the client's console.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), script)
	return nil
}
