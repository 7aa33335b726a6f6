package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/poll"
)

var waitCmd = &cobra.Command{
	Use:   "wait [view-pattern]",
	Short: "Wait until the client is ready",
	Long: `Wait until the client framework is loaded and, if a view pattern is given,
until the client shows a matching view. Patterns are globs such as
"top.game-room" or "top.sim-*".

Exits non-zero when --timeout elapses first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWait,
}

var waitTimeout time.Duration

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().DurationVarP(&waitTimeout, "timeout", "t", 0, "give up after this long (0 = bridge.ready_timeout_seconds)")
}

func runWait(cmd *cobra.Command, args []string) error {
	var pattern glob.Glob
	if len(args) == 1 {
		var err error
		if pattern, err = glob.Compile(args[0]); err != nil {
			return fmt.Errorf("invalid view pattern %q: %w", args[0], err)
		}
	}

	var opts []bridge.Option
	if waitTimeout > 0 {
		opts = append(opts, bridge.WithReadyTimeout(waitTimeout))
	}
	sess, err := openSession(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	start := time.Now()
	view, err := sess.bridge.WaitView(cmd.Context())
	if err != nil {
		return err
	}

	if pattern != nil {
		pollOpts := []poll.Option{
			poll.WithInterval(sess.cfg.Bridge.PollInterval()),
			poll.WithOperation(fmt.Sprintf("waiting for view %s", args[0])),
		}
		if timeout := readyTimeout(sess); timeout > 0 {
			// The readiness wait already used part of the budget.
			pollOpts = append(pollOpts, poll.WithTimeout(max(timeout-time.Since(start), 0)))
		}
		view, err = poll.For(cmd.Context(), func(ctx context.Context) (string, bool, error) {
			name, err := sess.driver.RouteName(ctx)
			if err != nil {
				if errors.IsRetryable(err) {
					return "", false, nil
				}
				return "", false, err
			}
			return name, pattern.Match(name), nil
		}, pollOpts...)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ready on %s after %s\n", view, time.Since(start).Round(time.Millisecond))
	return nil
}

func readyTimeout(sess *session) time.Duration {
	if waitTimeout > 0 {
		return waitTimeout
	}
	return sess.cfg.Bridge.ReadyTimeout()
}
