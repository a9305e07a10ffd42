package host

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger. debug selects a
// human-readable console encoder with debug level (matching the
// teacher's "-debug" flag turning on verbose trace output); the
// non-debug path uses zap's production JSON config, one line per
// syscall-level event.
func NewLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		// Logger construction only fails on a malformed static config;
		// falling back to a no-op logger keeps the VM itself running.
		return zap.NewNop()
	}
	return logger
}
