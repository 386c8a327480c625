// Package logging provides structured logging for the regador tools.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used by the dashboard, the device client and the simulator.
//
// # Log Levels
//
//   - Debug: raw push payloads, HTTP request lines, discarded stale samples
//   - Info: connections, config reloads, watering state changes
//   - Warn: recoverable failures (failed poll, unknown push type)
//   - Error: failures that leave the UI on stale data
//
// # Silent by Default
//
// Nothing is logged unless a level is given with --log-level or the
// REGADOR_LOG_LEVEL environment variable. The dashboard takes over the
// terminal, so it should be combined with --log-file (or REGADOR_LOG_FILE):
//
//	if err := logging.Initialize("debug", "/tmp/regador.log"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
