package util

import (
	"log/slog"
	"time"
)

// Trace 记录一段代码的耗时，用法：defer util.Trace(logger, "gen something")()
// logger 为 nil 时使用 slog.Default()
func Trace(logger *slog.Logger, msg string) func() {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	logger.Debug("trace start", "msg", msg)
	return func() {
		logger.Debug("trace end", "msg", msg, "elapsed", time.Since(start))
	}
}
