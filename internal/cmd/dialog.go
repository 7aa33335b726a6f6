package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
)

var dialogCmd = &cobra.Command{
	Use:   "dialog <message>",
	Short: "Show a popup in the client",
	Long: `Show a popup dialog in the client through its AlertService.

The icon is an image URL. Without a title and icon the client shows an
exclamation mark.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDialog,
}

var (
	dialogTitle  string
	dialogIcon   string
	dialogOK     string
	dialogCancel string
)

func init() {
	rootCmd.AddCommand(dialogCmd)
	dialogCmd.Flags().StringVar(&dialogTitle, "title", "screeps-adapter", "dialog title")
	dialogCmd.Flags().StringVar(&dialogIcon, "icon", "", "icon image URL")
	dialogCmd.Flags().StringVar(&dialogOK, "ok", "", "label of the OK button")
	dialogCmd.Flags().StringVar(&dialogCancel, "cancel", "", "label of the cancel button")
}

func runDialog(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	d := bridge.Dialog{
		Title:             dialogTitle,
		Icon:              dialogIcon,
		Message:           strings.Join(args, " "),
		ButtonOkLabel:     dialogOK,
		ButtonCancelLabel: dialogCancel,
	}
	if err := sess.bridge.ShowDialog(cmd.Context(), d); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "dialog shown")
	return nil
}
