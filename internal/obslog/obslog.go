// Package obslog provides the structured, operator-facing logger shared by
// every long-running component. It wraps logrus the same way across the
// whole engine so log lines are never built by ad-hoc fmt.Printf calls.
package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls how a Logger is constructed.
type Config struct {
	Level        string // logrus level name, e.g. "info", "debug"
	Format       string // "text" or "json"
	LogFile      string // optional; empty means stderr only
	EnableStdout bool   // also mirror to stdout when LogFile is set
}

// Logger wraps a *logrus.Logger. It is safe for concurrent use.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// New builds a Logger from cfg. Level defaults to "info" and format to
// "text" when left empty.
func New(cfg Config) (*Logger, error) {
	base := logrus.New()
	base.SetOutput(os.Stderr)

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("obslog: invalid log level %q: %w", level, err)
	}
	base.SetLevel(parsed)

	prettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch cfg.Format {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: prettyfier,
		})
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: prettyfier,
		})
	default:
		return nil, fmt.Errorf("obslog: unsupported log format %q", cfg.Format)
	}
	base.SetReportCaller(true)

	var file *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("obslog: creating log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("obslog: opening log file: %w", err)
		}
		if cfg.EnableStdout {
			base.SetOutput(io.MultiWriter(file, os.Stdout))
		} else {
			base.SetOutput(file)
		}
	}

	return &Logger{entry: logrus.NewEntry(base), file: file}, nil
}

// NewNop returns a Logger that discards everything, used by tests that do
// not care about log output.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// With returns a child Logger carrying the given structured fields on every
// subsequent line, mirroring logrus.Entry.WithFields without exposing the
// logrus type at call sites.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), file: l.file}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Close releases the underlying log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
