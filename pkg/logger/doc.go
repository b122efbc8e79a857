// Package logger provides structured logging for e6pools on top of zerolog.
//
// A process-wide logger is configured once from config.LoggingConfig and then
// handed to components explicitly; package-level helpers exist for the CLI.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("gallery_id", 1234)
//	log.Info("Fetching pool")
//
// Console output goes to stderr in a compact colored form. When a log file is
// configured the same events are additionally appended to it as JSON lines.
// Tests use NewTestLogger to assert on emitted messages, or NewNopLogger to
// silence output.
package logger
