// Package utils holds small shared helpers.
package utils

import "go.uber.org/zap"

// NewLogger returns the process logger. Debug mode uses the human-readable
// development config at debug level; otherwise JSON production config at info.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
