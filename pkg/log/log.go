// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "stdout"
)

// Config is embedded in the server config so the log level and sink are
// driven by the same toml/env/flag sources as everything else.
type Config struct {
	Level string `toml:"level" env:"LEVEL"`
	File  string `toml:"file" env:"FILE"`
}

// DefaultZapLoggerConfig defines default zap logger configuration.
var DefaultZapLoggerConfig = zap.Config{
	Level:       zap.NewAtomicLevelAt(zapcore.InfoLevel),
	Development: false,
	Sampling: &zap.SamplingConfig{
		Initial:    100,
		Thereafter: 100,
	},
	Encoding: "console",
	EncoderConfig: zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	},
	OutputPaths:      []string{"stdout"},
	ErrorOutputPaths: []string{"stdout"},
}

func init() {
	defaultConfig := &Config{
		Level: DefaultLogLevel,
		File:  DefaultLogFile,
	}
	if _, err := InitGlobalLogger(defaultConfig); err != nil {
		fmt.Println("fail to init global logger, err:", err)
	}
}

var (
	globalLogger    *zap.Logger
	globalLoggerCfg *zap.Config
)

// InitGlobalLogger initializes the global logger with Config.
func InitGlobalLogger(cfg *Config) (*zap.Logger, error) {
	zapCfg := DefaultZapLoggerConfig

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level.SetLevel(level)

	if len(cfg.File) > 0 {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	globalLogger = logger
	globalLoggerCfg = &zapCfg
	return logger, nil
}

func GetLogger() *zap.Logger {
	return globalLogger
}
