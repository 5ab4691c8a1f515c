package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ekisa-team/gptrepl/internal/chat"
)

// DefaultModel is the model used when the config names none.
const DefaultModel = "ggml-gpt4all-j-v1.3-groovy"

// Config holds the main configuration for the application.
type Config struct {
	Version string `json:"version" toml:"version" yaml:"version"`

	// Home holds the chat binary and the models directory.
	Home string `json:"home,omitempty" toml:"home,omitempty" yaml:"home,omitempty"`

	Model      string `json:"model,omitempty"      toml:"model,omitempty"      yaml:"model,omitempty"`
	Executable string `json:"executable,omitempty" toml:"executable,omitempty" yaml:"executable,omitempty"`
	ModelPath  string `json:"model_path,omitempty" toml:"model_path,omitempty" yaml:"model_path,omitempty"`

	Session SessionConfig  `json:"session,omitempty" toml:"session,omitempty" yaml:"session,omitempty"`
	Chat    ChatConfig     `json:"chat,omitempty"    toml:"chat,omitempty"    yaml:"chat,omitempty"`
	Decoder map[string]any `json:"decoder,omitempty" toml:"decoder,omitempty" yaml:"decoder,omitempty"`
	Log     LogConfig      `json:"log,omitempty"     toml:"log,omitempty"     yaml:"log,omitempty"`

	// DecoderOrder lists the decoder keys in the order the file declares them.
	DecoderOrder []string `json:"-" toml:"-" yaml:"-"`
}

// SessionConfig controls the chat program invocation and answer framing.
type SessionConfig struct {
	Temperature  *float64 `json:"temperature,omitempty"   toml:"temperature,omitempty"   yaml:"temperature,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"    toml:"max_tokens,omitempty"    yaml:"max_tokens,omitempty"`
	Policy       string   `json:"policy,omitempty"        toml:"policy,omitempty"        yaml:"policy,omitempty"`
	Quiescence   string   `json:"quiescence,omitempty"    toml:"quiescence,omitempty"    yaml:"quiescence,omitempty"`
	ReadyTimeout string   `json:"ready_timeout,omitempty" toml:"ready_timeout,omitempty" yaml:"ready_timeout,omitempty"`
}

// ChatConfig holds transcript and prompt template locations.
type ChatConfig struct {
	Dir           string `json:"dir,omitempty"            toml:"dir,omitempty"            yaml:"dir,omitempty"`
	TemplatePath  string `json:"template_path,omitempty"  toml:"template_path,omitempty"  yaml:"template_path,omitempty"`
	SystemMessage string `json:"system_message,omitempty" toml:"system_message,omitempty" yaml:"system_message,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"   toml:"level,omitempty"   yaml:"level,omitempty"`
	ToFile bool   `json:"to_file,omitempty" toml:"to_file,omitempty" yaml:"to_file,omitempty"`
	File   string `json:"file,omitempty"    toml:"file,omitempty"    yaml:"file,omitempty"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Home == "" {
		c.Home = DefaultHome()
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Session.Temperature == nil {
		t := chat.DefaultTemperature
		c.Session.Temperature = &t
	}
	if c.Session.MaxTokens == 0 {
		c.Session.MaxTokens = chat.DefaultMaxTokens
	}
	if c.Chat.Dir == "" {
		c.Chat.Dir = DefaultChatDir
	}
	if c.Chat.TemplatePath == "" {
		c.Chat.TemplatePath = DefaultTemplatePath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ModelFile returns the configured model path, or <home>/models/<model>.bin.
func (c *Config) ModelFile() string {
	if c.ModelPath != "" {
		return c.ModelPath
	}

	return filepath.Join(c.Home, "models", c.Model+".bin")
}

// SessionOptions translates the session section into chat.Options.
// Logger, Starter and Metrics are left to the caller.
func (c *Config) SessionOptions() (chat.Options, error) {
	policy, err := chat.ParsePolicy(c.Session.Policy)
	if err != nil {
		return chat.Options{}, err
	}

	quiescence, err := parseDuration("session.quiescence", c.Session.Quiescence)
	if err != nil {
		return chat.Options{}, err
	}

	ready, err := parseDuration("session.ready_timeout", c.Session.ReadyTimeout)
	if err != nil {
		return chat.Options{}, err
	}

	return chat.Options{
		Policy:       policy,
		Quiescence:   quiescence,
		ReadyTimeout: ready,
	}, nil
}

// DecoderConfig returns the decoder section as chat flags in file order.
func (c *Config) DecoderConfig() chat.DecoderConfig {
	return chat.DecoderConfigFromMap(c.Decoder, c.DecoderOrder...)
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", field, err)
	}

	return d, nil
}
