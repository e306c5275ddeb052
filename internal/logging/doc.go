// Package logging provides structured host logging using uber/zap.
//
// Production mode writes JSON; development mode writes colored console
// lines. Host logs go to stderr unless other outputs are configured. The
// sandbox's own log records travel on the response stream instead (see
// package output).
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "debug"})
//	if err != nil {
//		return err
//	}
//	logger.Component("loader").Debug("Module loaded", zap.String("id", "lib/a"))
package logging
