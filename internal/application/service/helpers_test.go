package service

import (
	"sync"

	"turn-annotator/internal/application/port/output"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {}
func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Named(name string) output.LoggerPort                { return l }
func (l *recordingLogger) WithField(key string, value any) output.LoggerPort  { return l }
func (l *recordingLogger) WithFields(fields map[string]any) output.LoggerPort { return l }
func (l *recordingLogger) Close() error                                       { return nil }

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}
