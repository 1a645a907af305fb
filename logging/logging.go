// Package logging builds the zap logger used by both entry points.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prognoshealth/destproxy/config"
)

// New returns a logger for cfg. JSON goes to stdout, console output is
// colored when the terminal supports it.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return newLogger(cfg, os.Stdout, color.Output)
}

func newLogger(cfg config.LogConfig, jsonOut, consoleOut io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var core zapcore.Core
	switch strings.ToLower(cfg.Format) {
	case "console":
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.AddSync(consoleOut),
			zap.NewAtomicLevelAt(level),
		)
	case "json", "":
		core = zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonEncoderConfig()),
			zapcore.AddSync(jsonOut),
			zap.NewAtomicLevelAt(level),
		)
	default:
		return nil, errors.Errorf("unknown log format '%s'", cfg.Format)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// ParseLevel maps a config level to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, errors.Errorf("unknown log level '%s'", s)
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func colorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString(color.BlueString("DEBUG"))
	case zapcore.InfoLevel:
		enc.AppendString(color.GreenString("INFO"))
	case zapcore.WarnLevel:
		enc.AppendString(color.YellowString("WARN"))
	case zapcore.ErrorLevel:
		enc.AppendString(color.RedString("ERROR"))
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		enc.AppendString(color.MagentaString("CRITICAL"))
	default:
		enc.AppendString(color.WhiteString(l.CapitalString()))
	}
}
