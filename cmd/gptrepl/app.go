package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/gptrepl/internal/assistant"
	"github.com/ekisa-team/gptrepl/internal/chat"
	"github.com/ekisa-team/gptrepl/internal/config"
	"github.com/ekisa-team/gptrepl/internal/env"
	"github.com/ekisa-team/gptrepl/internal/envvar"
	"github.com/ekisa-team/gptrepl/internal/logger"
)

// app is the state shared by every command.
type app struct {
	in  io.Reader
	out io.Writer

	configPath  string
	logLevel    string
	metricsFile string

	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		in:       in,
		out:      out,
		registry: prometheus.NewRegistry(),
	}
}

// setup loads the config and installs the logger. It runs before every command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	levelName := cfg.Log.Level
	if v := os.Getenv(envvar.GptreplLogLevel); v != "" {
		levelName = v
	}
	if cmd.Flags().Changed("log-level") {
		levelName = a.logLevel
	}

	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return err
	}

	logFile, toFile := logFileSetting(cfg.Log)
	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithLogToFile(toFile),
	}
	if logFile != "" {
		opts = append(opts, logger.WithLogFile(logFile))
	}

	a.log = logger.New(env.FromEnv(), opts...)
	slog.SetDefault(a.log)

	a.log.Debug("Config loaded", "config", a.configPath, "model", cfg.Model, "home", cfg.Home)

	return nil
}

// logFileSetting resolves the log file path and whether file logging is on.
// A set GPTREPL_LOG_FILE wins over the config; set to empty it disables file logging.
func logFileSetting(c config.LogConfig) (string, bool) {
	if v, ok := os.LookupEnv(envvar.GptreplLogFile); ok {
		return v, v != ""
	}

	return c.File, c.ToFile || c.File != ""
}

// newAssistant builds an assistant from the loaded config with session metrics attached.
func (a *app) newAssistant() (*assistant.Assistant, error) {
	acfg, err := assistant.ConfigFrom(a.cfg)
	if err != nil {
		return nil, err
	}
	acfg.Session.Metrics = chat.NewMetrics(a.registry)

	return assistant.New(acfg, assistant.WithLogger(a.log))
}

// flushMetrics writes the session metrics in text exposition format when --metrics-file is set.
func (a *app) flushMetrics() {
	if a.metricsFile == "" {
		return
	}

	if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
		a.log.Warn("Failed to write metrics file", "path", a.metricsFile, "error", err)
	}
}
