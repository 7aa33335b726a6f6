package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Read or modify the page's local storage",
	Long: `Read or modify window.localStorage of the client page. Feature scripts keep
their settings there.`,
}

var storageGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE:  runStorageGet,
}

var storageSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE:  runStorageSet,
}

var storageRemoveCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"remove"},
	Short:   "Remove a stored value",
	Args:    cobra.ExactArgs(1),
	RunE:    runStorageRemove,
}

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageGetCmd)
	storageCmd.AddCommand(storageSetCmd)
	storageCmd.AddCommand(storageRemoveCmd)
}

// withReadySession opens a session, waits for the client and runs fn.
func withReadySession(cmd *cobra.Command, fn func(*session) error) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.bridge.WaitReady(cmd.Context()); err != nil {
		return err
	}
	return fn(sess)
}

func runStorageGet(cmd *cobra.Command, args []string) error {
	return withReadySession(cmd, func(sess *session) error {
		value, ok, err := sess.bridge.Storage().GetItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no value stored under %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	})
}

func runStorageSet(cmd *cobra.Command, args []string) error {
	return withReadySession(cmd, func(sess *session) error {
		if err := sess.bridge.Storage().SetItem(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
		return nil
	})
}

func runStorageRemove(cmd *cobra.Command, args []string) error {
	return withReadySession(cmd, func(sess *session) error {
		if err := sess.bridge.Storage().RemoveItem(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	})
}
