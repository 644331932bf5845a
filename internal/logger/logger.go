// Package logger builds the zap logger mapfs logs through. The level can be
// changed after the logger is built.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap.Logger together with its atomic level.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

type Config struct {
	Type            LogType `mapstructure:"type"`
	File            string  `mapstructure:"file"`
	Level           int8    `mapstructure:"level"`
	MaxSize         int     `mapstructure:"max-size"`
	NumRotatedFiles int     `mapstructure:"num-rotated-files"`
	Developer       bool    `mapstructure:"developer"`
}

type LogType string

const (
	StdOut  LogType = "stdout"
	StdErr  LogType = "stderr"
	LogFile LogType = "logfile"
)

// SupportedLogTypes is used for help text and validation.
var SupportedLogTypes = []LogType{StdOut, StdErr, LogFile}

func New(cfg Config) (*Logger, error) {
	l := &Logger{}

	if cfg.Developer {
		l.level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = l.level
		zl, err := zcfg.Build()
		if err != nil {
			return nil, err
		}
		l.Logger = zl
		return l, nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	level, err := getLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	l.level = zap.NewAtomicLevelAt(level)

	var dest zapcore.WriteSyncer
	switch cfg.Type {
	case StdOut:
		dest = zapcore.AddSync(os.Stdout)
	case StdErr, "":
		dest = zapcore.AddSync(os.Stderr)
	case LogFile:
		if err := ensureLogsAreWritable(cfg.File); err != nil {
			return nil, err
		}
		dest = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.NumRotatedFiles,
		})
	default:
		return nil, fmt.Errorf("unsupported log type: %s (supported: %v)", cfg.Type, SupportedLogTypes)
	}

	l.Logger = zap.New(zapcore.NewCore(encoder, dest, l.level))
	return l, nil
}

// SetLevel changes the level of the running logger.
func (l *Logger) SetLevel(level int8) error {
	zl, err := getLevel(level)
	if err != nil {
		return err
	}
	if l.level.Level() != zl {
		l.level.SetLevel(zl)
		l.Logger.Log(zl, "set log level", zap.Stringer("level", zl))
	}
	return nil
}

// getLevel maps the numeric log levels used in configuration to zap levels.
func getLevel(level int8) (zapcore.Level, error) {
	switch level {
	case 0:
		return zapcore.ErrorLevel, nil
	case 1:
		return zapcore.WarnLevel, nil
	case 3:
		return zapcore.InfoLevel, nil
	case 5:
		return zapcore.DebugLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("the provided log.level (%d) is invalid (must be 0, 1, 3, or 5)", level)
	}
}

// ensureLogsAreWritable checks that the log directory exists and accepts new
// files, which rotation needs.
func ensureLogsAreWritable(file string) error {
	if file == "" {
		return fmt.Errorf("log.file is required for log type %s", LogFile)
	}
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mapfs-*.tmp")
	if err != nil {
		return fmt.Errorf("log directory %s is not writable: %w", dir, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Remove(tmp.Name())
}
