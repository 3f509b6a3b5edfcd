// Package logger provides structured logging capabilities.
//
// The logger package sets up the zap logger shared by every component of
// the service. Production mode emits JSON with ISO8601 timestamps,
// development mode emits coloured console output.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("job finished", zap.String("job_id", id))
package logger
