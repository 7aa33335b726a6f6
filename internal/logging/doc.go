// Package logging writes the adapter's JSON log through log/slog.
//
// The bridge reports subscriber failures and derivation errors to its logger
// rather than to callers, so the log is where a callback that silently
// stopped working shows up.
//
//	logger, err := logging.NewLogger(dir, "info")
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	logger.WithDriver("cdp").WithSignal("view").Info("view changed", "view", "top.game-room")
//
// produces
//
//	{"time":"...","level":"INFO","msg":"view changed","driver":"cdp","signal":"view","view":"top.game-room"}
//
// The watch command calls SetLevel when the configuration file changes.
package logging
