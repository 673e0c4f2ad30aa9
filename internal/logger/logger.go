// Package logger wraps zap construction for the binaries.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating log file next to stderr output.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger holds the process-wide zap logger. The zero value logs nothing until Init.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger backed by a no-op zap logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces Log with a JSON logger at level writing to stderr.
func (l *Logger) Init(level string) error {
	return l.InitWithFile(level, FileConfig{})
}

// InitWithFile is Init plus an optional lumberjack-rotated file sink.
func (l *Logger) InitWithFile(level string, file FileConfig) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if file.Filename != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zap.CombineWriteSyncers(sinks...), lvl)
	l.Log = zap.New(core, zap.AddCaller())
	return nil
}
