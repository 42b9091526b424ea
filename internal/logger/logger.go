package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
)

// Logger defines the logging interface used throughout subsync.
// Messages fall into two groups: debug messages (Info, Warning, Error) that
// go to the log file, and user messages (InfoToUser, WarningToUser, Success,
// Step, StatusMessage) that are always printed and also recorded in the file.
type Logger interface {
	// Info logs an informational message to the debug log only.
	Info(format string, args ...interface{})

	// Warning logs a warning to the debug log. It is also printed when
	// verbose output is enabled.
	Warning(format string, args ...interface{})

	// Error logs an error. Errors are always printed to stderr.
	Error(format string, args ...interface{})

	// InfoToUser prints an informational line to the user.
	InfoToUser(format string, args ...interface{})

	// WarningToUser prints a warning line to the user.
	WarningToUser(format string, args ...interface{})

	// Success prints a success line to the user.
	Success(format string, args ...interface{})

	// Step prints the header line that opens a pipeline stage.
	Step(format string, args ...interface{})

	// StatusMessage prints a plain line to stdout without logging it.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the debug log file, if any.
	Close() error
}

// Options configures a DefaultLogger.
type Options struct {
	// Debug enables the slog debug file at LogFile.
	Debug   bool
	LogFile string

	// Verbose prints Warning and InfoToUser lines; Quiet mode clears it.
	Verbose bool

	// NoColor disables ANSI colors on user-facing lines.
	NoColor bool

	Stdout io.Writer
	Stderr io.Writer
}

// DefaultLogger writes structured debug logs through slog and colored status
// lines to the terminal.
type DefaultLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	enabled bool
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File

	info    *color.Color
	warn    *color.Color
	fail    *color.Color
	success *color.Color
	step    *color.Color
}

// New creates a Logger writing to os.Stdout and os.Stderr.
func New(debug bool, logFile string, verbose, noColor bool) Logger {
	return NewWithOptions(Options{
		Debug:   debug,
		LogFile: logFile,
		Verbose: verbose,
		NoColor: noColor,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
}

// NewWithOptions creates a DefaultLogger from explicit options.
func NewWithOptions(opts Options) *DefaultLogger {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: slog.LevelDebug}

	l := &DefaultLogger{
		enabled: opts.Debug,
		verbose: opts.Verbose,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		success: color.New(color.FgGreen),
		step:    color.New(color.FgBlue, color.Bold),
	}

	if opts.NoColor {
		for _, c := range []*color.Color{l.info, l.warn, l.fail, l.success, l.step} {
			c.DisableColor()
		}
	}

	if opts.Debug {
		if dir := filepath.Dir(opts.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "⚠️  Failed to create log directory: %v\n", err)
			}
		}

		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			l.file = f
			l.logger = slog.New(slog.NewTextHandler(f, handlerOpts))
			_, _ = fmt.Fprintf(opts.Stdout, "🔍 Debug logging enabled. Logs will be written to: %s\n", opts.LogFile)
			l.logger.Info("subsync debug logging started")
		} else {
			l.logger = slog.New(slog.NewTextHandler(opts.Stderr, handlerOpts))
			_, _ = fmt.Fprintf(opts.Stderr, "⚠️  Failed to open log file: %v, using stderr instead\n", err)
		}
	} else {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, handlerOpts))
	}

	return l
}

// Info logs an informational message (file only)
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Warn(msg)
	}
	if l.verbose {
		_, _ = fmt.Fprintln(l.stdout, l.warn.Sprint("⚠️  "+msg))
	}
}

// Error logs an error message and always prints it to stderr
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Error(msg)
	}
	_, _ = fmt.Fprintln(l.stderr, l.fail.Sprint("❌ "+msg))
}

// InfoToUser logs an informational message to both file and stdout
func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Info(msg)
	}
	if l.verbose {
		_, _ = fmt.Fprintln(l.stdout, l.info.Sprint("ℹ️  "+msg))
	}
}

// WarningToUser logs a warning message to both file and stdout
func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Warn(msg)
	}
	_, _ = fmt.Fprintln(l.stdout, l.warn.Sprint("⚠️  "+msg))
}

// Success logs a success message to both file and stdout
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Info(msg)
	}
	_, _ = fmt.Fprintln(l.stdout, l.success.Sprint("✅ "+msg))
}

// Step prints a stage header to stdout and records it in the log file
func (l *DefaultLogger) Step(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Info(msg, "kind", "stage")
	}
	_, _ = fmt.Fprintln(l.stdout, l.step.Sprint("==> "+msg))
}

// StatusMessage prints a status message to stdout only (no logging)
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintln(l.stdout, fmt.Sprintf(format, args...))
}

// Close ensures any buffered data is written and closes open log file handles
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SetStdout replaces the writer used for user-facing stdout lines.
func (l *DefaultLogger) SetStdout(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = w
}

// SetStderr replaces the writer used for user-facing stderr lines.
func (l *DefaultLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}
