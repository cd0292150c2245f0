// Package logging wires up the process-wide structured logger. It replaces
// the teacher's "[Protocol] ..." log.Printf tags (internal/protocol/handler.go)
// with zap fields, grounded on progressdb-ProgressDB/server/pkg/logger/log.go's
// direct use of go.uber.org/zap.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger, or a development logger with
// human-readable console output when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ForConnection returns a child logger scoped to one accepted connection,
// carrying the fields every connection-level log line needs.
func ForConnection(base *zap.Logger, connID, role, remoteAddr string) *zap.Logger {
	return base.With(
		zap.String("conn_id", connID),
		zap.String("role", role),
		zap.String("remote_addr", remoteAddr),
	)
}
