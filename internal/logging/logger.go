// Package logging builds the process logger. Log records go to a rotating
// JSON file because the terminal UI owns stdout; verbose runs also write a
// readable copy to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // empty disables the file core
	Verbose bool
	Console io.Writer // defaults to os.Stderr
}

// New returns a logger, the level it filters on, and a close function that
// flushes the logger and releases the log file. Changing the level takes
// effect on all cores at once.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, func() error, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, level, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var (
		cores []zapcore.Core
		file  *lumberjack.Logger
	)
	if opts.File != "" {
		core, f, err := newFileCore(opts.File, level)
		if err != nil {
			return nil, level, nil, err
		}
		cores = append(cores, core)
		file = f
	}
	if opts.Verbose {
		w := opts.Console
		if w == nil {
			w = os.Stderr
		}
		cores = append(cores, newConsoleCore(w, level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), level, func() error { return nil }, nil
	}
	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, level, closeFn, nil
}

// SetLevel parses name and applies it to level.
func SetLevel(level zap.AtomicLevel, name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

func newFileCore(path string, level zapcore.LevelEnabler) (zapcore.Core, *lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("could not create log directory: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level), file, nil
}

func newConsoleCore(w io.Writer, level zapcore.LevelEnabler) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
}
