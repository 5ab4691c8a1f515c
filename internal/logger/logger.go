package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/gptrepl/internal/env"
)

// DefaultLogFile is the rotating log file used when file logging is enabled.
const DefaultLogFile = "logs/gptrepl.log"

type options struct {
	level     *slog.Level
	logToFile bool
	logFile   string
	console   io.Writer
	noColor   bool
}

// Option configures New.
type Option func(*options)

// WithLogToFile enables the rotating JSON log file next to the console output.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the rotating log file path.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel overrides the level derived from the environment.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithConsole sets the console writer. Defaults to os.Stderr.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithNoColor disables ANSI colours on the console.
func WithNoColor(disabled bool) Option {
	return func(o *options) {
		o.noColor = disabled
	}
}

// New builds the application logger: a tint console handler and, when enabled,
// a JSON handler on a lumberjack rotating file. Development defaults to debug.
func New(e env.Environment, opts ...Option) *slog.Logger {
	o := options{
		logFile: DefaultLogFile,
		console: os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}

	level := slog.LevelInfo
	if e.IsDevelopment() {
		level = slog.LevelDebug
	}
	if o.level != nil {
		level = *o.level
	}

	handlers := []slog.Handler{
		tint.NewHandler(o.console, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    o.noColor,
		}),
	}

	if o.logToFile && o.logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{
			Level:     level,
			AddSource: e.IsDevelopment(),
		}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}

	return slog.New(&fanout{handlers: handlers}).With("env", e.String())
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logger: invalid level %q: %w", s, err)
	}

	return level, nil
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
