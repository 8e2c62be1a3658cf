package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogEncoder = string

const (
	ConsoleLogEncoder LogEncoder = "console"
	JSONLogEncoder    LogEncoder = "json"
)

// NewLogger builds the process logger from log-level and log-encoder.
func (c Config) NewLogger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogEncoder == ConsoleLogEncoder {
		zc.Encoding = ConsoleLogEncoder
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
