package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bridge version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "screeps-adapter bridge %s\n", bridge.Version)
		return nil
	},
}

var versionCompareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Compare two bridge versions",
	Long: `Compare two dotted bridge versions and print <, = or >. A bridge only
replaces an installed one when its version compares greater.`,
	Args: cobra.ExactArgs(2),
	RunE: runVersionCompare,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionCompareCmd)
}

func runVersionCompare(cmd *cobra.Command, args []string) error {
	c, err := version.Compare(args[0], args[1])
	if err != nil {
		return err
	}
	op := "="
	switch {
	case c < 0:
		op = "<"
	case c > 0:
		op = ">"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", args[0], op, args[1])
	return nil
}
