package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ekisa-team/gptrepl/internal/chat"
	"github.com/ekisa-team/gptrepl/internal/config"
	"github.com/ekisa-team/gptrepl/internal/fetch"
	"github.com/ekisa-team/gptrepl/internal/transcript"
	"github.com/ekisa-team/gptrepl/internal/xfs"
)

// templateFormat is the prompt template written for a system message.
// %1 is substituted by the chat program with the user prompt.
const templateFormat = "### Instruction:\n%s\n### Prompt:\n%%1\n### Response:"

// Config describes the files and invocation of one assistant.
type Config struct {
	Model string

	// Home holds the chat binary and models. Defaults to config.DefaultHome.
	Home string

	// Executable defaults to the platform binary inside Home.
	Executable string

	// ModelPath defaults to <Home>/models/<Model>.bin.
	ModelPath string

	Temperature float64
	MaxTokens   int
	Decoder     chat.DecoderConfig

	ChatDir      string
	TemplatePath string

	// GOOS selects the platform binary and release asset. Defaults to runtime.GOOS.
	GOOS string

	Session chat.Options
}

// ConfigFrom maps a loaded configuration file onto an assistant Config.
func ConfigFrom(c *config.Config) (Config, error) {
	opts, err := c.SessionOptions()
	if err != nil {
		return Config{}, err
	}

	temp := chat.DefaultTemperature
	if c.Session.Temperature != nil {
		temp = *c.Session.Temperature
	}

	return Config{
		Model:        c.Model,
		Home:         c.Home,
		Executable:   c.Executable,
		ModelPath:    c.ModelFile(),
		Temperature:  temp,
		MaxTokens:    c.Session.MaxTokens,
		Decoder:      c.DecoderConfig(),
		ChatDir:      c.Chat.Dir,
		TemplatePath: c.Chat.TemplatePath,
		Session:      opts,
	}, nil
}

// Ensurer places the chat binary and model on disk.
type Ensurer interface {
	Ensure(ctx context.Context, assets []fetch.Asset, force bool) (int, error)
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger of the assistant and its session.
func WithLogger(log *slog.Logger) Option {
	return func(a *Assistant) {
		a.log = log
	}
}

// WithEnsurer replaces the downloader used by Init.
func WithEnsurer(e Ensurer) Option {
	return func(a *Assistant) {
		a.ensurer = e
	}
}

// Assistant runs a local model through the chat program and keeps transcripts.
type Assistant struct {
	log         *slog.Logger
	session     *chat.Session
	ensurer     Ensurer
	transcripts transcript.Store

	mu       sync.Mutex
	cfg      Config
	system   string
	chatName string
}

// New creates an assistant with a closed session.
func New(cfg Config, opts ...Option) (*Assistant, error) {
	a := &Assistant{log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	base := a.log
	a.log = base.With("component", "assistant")

	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Home == "" {
		cfg.Home = config.DefaultHome()
	}
	cfg.Home = xfs.ExpandTilde(cfg.Home)
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	if cfg.Executable == "" {
		exe, err := chat.ResolveExecutable(cfg.Home, cfg.GOOS)
		if err != nil {
			return nil, err
		}
		cfg.Executable = exe
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = filepath.Join(cfg.Home, "models", cfg.Model+".bin")
	}
	if cfg.ChatDir == "" {
		cfg.ChatDir = config.DefaultChatDir
	}
	if cfg.TemplatePath == "" {
		cfg.TemplatePath = config.DefaultTemplatePath
	}
	if cfg.Session.GOOS == "" {
		cfg.Session.GOOS = cfg.GOOS
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = base
	}

	if a.ensurer == nil {
		a.ensurer = fetch.NewDownloader(base)
	}

	a.cfg = cfg
	a.session = chat.NewSession(cfg.Session)
	a.transcripts = transcript.Store{Dir: cfg.ChatDir}

	return a, nil
}

// Model returns the model name.
func (a *Assistant) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cfg.Model
}

// SetModel switches to another model file in the same directory. It applies to the next Open.
func (a *Assistant) SetModel(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.ModelPath = filepath.Join(filepath.Dir(a.cfg.ModelPath), name+".bin")
	a.cfg.Model = name
}

// ModelPath returns the model file passed to the chat program.
func (a *Assistant) ModelPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cfg.ModelPath
}

// ExecutablePath returns the chat program path.
func (a *Assistant) ExecutablePath() string {
	return a.cfg.Executable
}

// UpdateDecoder replaces the decoder options. It applies to the next Open.
func (a *Assistant) UpdateDecoder(d chat.DecoderConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.Decoder = append(chat.DecoderConfig(nil), d...)
}

// Session exposes the underlying session.
func (a *Assistant) Session() *chat.Session {
	return a.session
}

// Transcripts returns the transcript store.
func (a *Assistant) Transcripts() transcript.Store {
	return a.transcripts
}

// Init downloads the chat program and model when they are missing, or always when force is set.
func (a *Assistant) Init(ctx context.Context, force bool) error {
	exeURL, err := fetch.ExecutableURL(a.cfg.GOOS)
	if err != nil {
		return err
	}

	a.mu.Lock()
	assets := []fetch.Asset{
		{URL: exeURL, Dest: a.cfg.Executable, Executable: true},
		{URL: fetch.ModelURL(a.cfg.Model), Dest: a.cfg.ModelPath},
	}
	a.mu.Unlock()

	n, err := a.ensurer.Ensure(ctx, assets, force)
	if err != nil {
		return fmt.Errorf("assistant: init: %w", err)
	}

	a.log.Info("Assistant files ready", "downloaded", n, "executable", assets[0].Dest, "model", assets[1].Dest)

	return nil
}

// Open starts the chat program. A non-empty system message is written to the
// prompt template; an existing template is rewritten with the given message and
// used either way. When chatName has a transcript it is loaded as history.
func (a *Assistant) Open(ctx context.Context, system, chatName string) error {
	if chatName != "" {
		if err := transcript.ValidateName(chatName); err != nil {
			return err
		}
	}

	a.mu.Lock()
	o := chat.OpenOptions{
		Executable:   a.cfg.Executable,
		ModelPath:    a.cfg.ModelPath,
		Temperature:  a.cfg.Temperature,
		MaxTokens:    a.cfg.MaxTokens,
		TemplatePath: a.prepareTemplate(system),
		Decoder:      append(chat.DecoderConfig(nil), a.cfg.Decoder...),
	}
	a.mu.Unlock()

	if chatName != "" {
		o.ChatLogPath = a.transcripts.Path(chatName)
	}

	if err := a.session.Open(ctx, o); err != nil {
		return err
	}

	a.mu.Lock()
	a.system = system
	a.chatName = chatName
	a.mu.Unlock()

	return nil
}

// prepareTemplate writes the prompt template and returns its path, or "" when
// no template applies or it could not be written.
func (a *Assistant) prepareTemplate(system string) string {
	path := a.cfg.TemplatePath
	if strings.TrimSpace(system) == "" && !xfs.IsFile(path) {
		return ""
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf(templateFormat, system)), 0o644); err != nil {
		a.log.Warn("Failed to write prompt template, system message is ignored", "path", path, "error", err)
		return ""
	}

	return path
}

// Ask sends a prompt and returns the answer. With a chat name set, the turn is
// appended to its transcript.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	answer, err := a.session.Prompt(ctx, prompt)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	system, chatName := a.system, a.chatName
	a.mu.Unlock()

	if chatName != "" {
		entry := transcript.Entry{System: system, Prompt: prompt, Response: answer}
		if err := a.transcripts.Append(chatName, entry); err != nil {
			a.log.Warn("Failed to save transcript", "chat", chatName, "error", err)
		}
	}

	return answer, nil
}

// Close stops the chat program.
func (a *Assistant) Close(ctx context.Context) error {
	return a.session.Close(ctx)
}
