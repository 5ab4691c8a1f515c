package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultTemperature is the sampling temperature passed with --temp.
	DefaultTemperature = 0.9

	// DefaultMaxTokens is the token budget passed with -n.
	DefaultMaxTokens = 10000

	// DefaultReadyTimeout bounds the wait for the program's first marker.
	DefaultReadyTimeout = 2 * time.Minute

	// readChunkSize is the largest chunk read from stdout at once.
	readChunkSize = 4096

	// chunkBuffer is the number of chunks queued between the reader and an exchange.
	chunkBuffer = 64
)

// Options configures a Session.
type Options struct {
	// Policy selects how an exchange decides it is complete.
	Policy CompletionPolicy

	// Quiescence is the inactivity window. Zero selects the policy default.
	Quiescence time.Duration

	// ReadyTimeout bounds Open's wait for the ready marker. Zero selects DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// Starter starts the program. Nil selects ExecStarter.
	Starter Starter

	// GOOS selects the platform binary when OpenOptions.Executable is empty.
	// Empty selects runtime.GOOS.
	GOOS string

	Logger  *slog.Logger
	Metrics *Metrics
}

// OpenOptions describes the program invocation for one Open.
type OpenOptions struct {
	// Executable is the path of the chat binary. When empty, the platform
	// binary name is resolved inside InstallDir.
	Executable string
	InstallDir string

	ModelPath   string
	Temperature float64

	// MaxTokens is passed with -n. Zero selects DefaultMaxTokens.
	MaxTokens int

	// TemplatePath adds --load_template when set.
	TemplatePath string

	// ChatLogPath is passed with --load_log when the file exists.
	ChatLogPath string

	Decoder DecoderConfig
}

// Args builds the program arguments, excluding the executable itself.
func (o OpenOptions) Args() []string {
	args := []string{
		"--model", o.ModelPath,
		"--no-animation",
		"--temp", formatValue(o.Temperature),
	}

	if o.TemplatePath != "" {
		args = append(args, "--load_template", o.TemplatePath)
	}

	tokens := o.MaxTokens
	if tokens <= 0 {
		tokens = DefaultMaxTokens
	}

	args = append(args, "-n", strconv.Itoa(tokens))
	args = append(args, "--load_log", existingFile(o.ChatLogPath))

	return append(args, o.Decoder.Flags()...)
}

// existingFile returns path when it names an existing file and "" otherwise.
func existingFile(path string) string {
	if path == "" {
		return ""
	}

	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}

	return path
}

// Session owns at most one running chat program and frames prompts and answers over it.
//
// Open, Close and Exchange are safe to call from multiple goroutines, but only one
// exchange may be pending at a time; a concurrent one fails with ErrExchangeInFlight.
type Session struct {
	opts  Options
	log   *slog.Logger
	mu    sync.Mutex // serializes Open and Close
	state atomic.Int32
	live  atomic.Pointer[handle]
}

// NewSession creates a closed session.
func NewSession(opts Options) *Session {
	if opts.Starter == nil {
		opts.Starter = ExecStarter{}
	}
	if opts.Quiescence <= 0 {
		opts.Quiescence = opts.Policy.DefaultWindow()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		opts: opts,
		log:  log.With("component", "chat_session"),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Pid returns the process id of the running program, or 0 when closed.
func (s *Session) Pid() int {
	if h := s.live.Load(); h != nil {
		return h.proc.Pid()
	}

	return 0
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Debug("Session state changed", "from", prev, "to", st)
	}
}

// Open starts the chat program and waits until it prints its ready marker.
// A running program is closed first, and its exit is observed before the new one starts.
func (s *Session) Open(ctx context.Context, o OpenOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live.Load() != nil {
		s.log.Info("Closing running program before reopening")
		if err := s.closeLocked(ctx); err != nil {
			return fmt.Errorf("chat: close previous program: %w", err)
		}
	}

	err := s.open(ctx, o)
	s.opts.Metrics.openResult(err)

	return err
}

func (s *Session) open(ctx context.Context, o OpenOptions) error {
	exe := o.Executable
	if exe == "" {
		resolved, err := ResolveExecutable(o.InstallDir, s.opts.GOOS)
		if err != nil {
			return &StartError{Path: o.InstallDir, Err: err}
		}
		exe = resolved
	}

	args := o.Args()

	s.setState(StateOpening)
	s.log.Info("Starting chat program", "executable", exe, "model", o.ModelPath)
	s.log.Debug("Built command arguments", "args", args)

	proc, err := s.opts.Starter.Start(ctx, exe, args)
	if err != nil {
		s.setState(StateClosed)
		s.log.Error("Failed to start chat program", "executable", exe, "error", err)
		return &StartError{Path: exe, Err: err}
	}

	h := newHandle(proc)
	go h.pump(proc.Stdout())
	s.live.Store(h)
	s.opts.Metrics.processStarted()

	if err := s.waitReady(ctx, h); err != nil {
		s.log.Error("Chat program did not become ready", "pid", proc.Pid(), "error", err)
		s.terminate(h)
		s.live.Store(nil)
		s.setState(StateClosed)
		return &StartError{Path: exe, Err: err}
	}

	s.setState(StateOpen)
	s.log.Info("Chat program ready", "pid", proc.Pid())

	return nil
}

// waitReady consumes output until a chunk contains the marker.
func (s *Session) waitReady(ctx context.Context, h *handle) error {
	timer := time.NewTimer(s.opts.ReadyTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-h.chunks:
			if !ok {
				return h.awaitTerminal(ctx)
			}
			if strings.Contains(chunk, Marker) {
				return nil
			}
		case <-timer.C:
			return ErrReadyTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close kills the program and returns once its exit has been observed.
// Closing a closed session is a no-op. A pending exchange fails with ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked(ctx)
}

func (s *Session) closeLocked(ctx context.Context) error {
	h := s.live.Load()
	if h == nil {
		return nil
	}

	s.setState(StateClosing)
	s.log.Info("Closing chat program", "pid", h.proc.Pid())

	h.stop()
	if err := h.proc.Kill(); err != nil {
		s.log.Warn("Failed to kill chat program", "pid", h.proc.Pid(), "error", err)
	}

	select {
	case <-h.exited:
	case <-ctx.Done():
		return fmt.Errorf("chat: waiting for program exit: %w", ctx.Err())
	}

	s.opts.Metrics.processExited()
	s.live.Store(nil)
	s.setState(StateClosed)
	s.log.Info("Chat program closed", "exit", h.waitErr)

	return nil
}

// terminate kills a program that never became ready and reaps it.
func (s *Session) terminate(h *handle) {
	h.stop()
	if err := h.proc.Kill(); err != nil {
		s.log.Warn("Failed to kill chat program", "pid", h.proc.Pid(), "error", err)
	}
	<-h.exited
	s.opts.Metrics.processExited()
}

// handle is the live process plus the reader that owns its output stream.
type handle struct {
	proc   Process
	chunks chan string
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
	busy   atomic.Bool

	// Written by pump before closing chunks and exited respectively.
	readErr error
	waitErr error
}

func newHandle(proc Process) *handle {
	return &handle{
		proc:   proc,
		chunks: make(chan string, chunkBuffer),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// pump reads stdout until EOF or error, forwarding chunks in arrival order,
// then reaps the process.
func (h *handle) pump(stdout io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			select {
			case h.chunks <- string(buf[:n]):
			case <-h.quit:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.readErr = err
			}
			break
		}
	}
	close(h.chunks)

	h.waitErr = h.proc.Wait()
	close(h.exited)
}

// stop signals that the session is shutting the process down.
func (h *handle) stop() {
	h.once.Do(func() { close(h.quit) })
}

func (h *handle) stopping() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}

// awaitTerminal describes why the output stream ended. A read error is reported
// at once; an EOF is reported once the exit has been reaped.
// It must only be called after chunks was closed.
func (h *handle) awaitTerminal(ctx context.Context) error {
	if h.readErr != nil {
		return &StreamError{Err: h.readErr}
	}

	select {
	case <-h.exited:
		return &UnexpectedTerminationError{Err: h.waitErr}
	case <-ctx.Done():
		return ctx.Err()
	}
}
