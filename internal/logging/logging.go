// Package logging constructs the process-wide zap logger. Production mode
// emits structured JSON suitable for a log pipeline; dev mode (the
// teacher's cfg.verbose equivalent) emits a human-readable console encoding.
package logging

import "go.uber.org/zap"

// New builds a *zap.Logger for the given mode. dev mirrors the teacher's
// "-verbose" switch: console-encoded, debug level, upper-case level names.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	return cfg.Build()
}
