package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"turn-annotator/internal/application/port/output"
)

var _ output.LoggerPort = (*LoggerAdapter)(nil)

// Options selects where JSON log lines go. With Dir set, each process gets its own file named
// <timestamp>_<name>.log.
type Options struct {
	Name    string
	Dir     string
	Stderr  bool
	Verbose bool
}

type LoggerAdapter struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	path  string
}

func NewLoggerAdapter(opts Options) (*LoggerAdapter, error) {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.OutputPaths = nil

	var path string
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), sanitize(opts.Name))
		path = filepath.Join(opts.Dir, filename)
		cfg.OutputPaths = append(cfg.OutputPaths, path)
	}
	if opts.Stderr || len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return &LoggerAdapter{
		base:  base,
		sugar: base.Sugar(),
		path:  path,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *LoggerAdapter {
	base := zap.NewNop()
	return &LoggerAdapter{base: base, sugar: base.Sugar()}
}

// Path is the log file path, empty when logging only to stderr.
func (l *LoggerAdapter) Path() string {
	return l.path
}

func (l *LoggerAdapter) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *LoggerAdapter) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *LoggerAdapter) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *LoggerAdapter) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *LoggerAdapter) Named(name string) output.LoggerPort {
	return &LoggerAdapter{base: l.base, sugar: l.sugar.Named(name), path: l.path}
}

func (l *LoggerAdapter) WithField(key string, value any) output.LoggerPort {
	return &LoggerAdapter{base: l.base, sugar: l.sugar.With(key, value), path: l.path}
}

func (l *LoggerAdapter) WithFields(fields map[string]any) output.LoggerPort {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &LoggerAdapter{base: l.base, sugar: l.sugar.With(args...), path: l.path}
}

// Close flushes the log. Sync errors on terminals are expected and ignored when there is no file.
func (l *LoggerAdapter) Close() error {
	err := l.base.Sync()
	if err != nil && l.path == "" {
		return nil
	}
	return err
}

// sanitize makes a name safe to use in a file name.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "annotator"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
