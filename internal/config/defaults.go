package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ekisa-team/gptrepl/internal/envvar"
	"github.com/ekisa-team/gptrepl/internal/xfs"
)

const (
	// DefaultChatDir holds chat transcripts, relative to the working directory.
	DefaultChatDir = "./chats"

	// DefaultTemplatePath is where the prompt template is written.
	DefaultTemplatePath = "./promptTemplate.txt"

	// DefaultConfigFile is the config file name inside DefaultConfigPath.
	DefaultConfigFile = "config.yaml"
)

// DefaultConfigPath returns the default path for the gptrepl config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "gptrepl", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "gptrepl")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "gptrepl")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "gptrepl")
		}
		return filepath.Join(home, ".config", "gptrepl")
	}
}

// DefaultConfigFilePath returns GPTREPL_CONFIG or config.yaml in DefaultConfigPath.
func DefaultConfigFilePath() string {
	if p := os.Getenv(envvar.GptreplConfig); p != "" {
		return xfs.ExpandTilde(p)
	}

	return filepath.Join(DefaultConfigPath(), DefaultConfigFile)
}

// DefaultHome returns GPTREPL_HOME or ~/.nomic, where the chat binary and models live.
func DefaultHome() string {
	if p := os.Getenv(envvar.GptreplHome); p != "" {
		return xfs.ExpandTilde(p)
	}

	return xfs.ExpandTilde("~/.nomic")
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}
