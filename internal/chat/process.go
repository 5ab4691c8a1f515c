package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a started chat program with captured input and output streams.
type Process interface {
	// Stdin is the program's input stream.
	Stdin() io.Writer

	// Stdout is the program's output stream.
	Stdout() io.Reader

	// Pid returns the operating system process id, or 0 when unknown.
	Pid() int

	// Kill terminates the program. Killing an exited program is not an error.
	Kill() error

	// Wait blocks until the program exits. It must only be called once
	// Stdout has been read to completion.
	Wait() error
}

// Starter is the interface for starting chat programs.
type Starter interface {
	Start(ctx context.Context, name string, args []string) (Process, error)
}

// ExecStarter uses os/exec.
type ExecStarter struct{}

// Start starts the program with piped stdin and stdout and a discarded stderr.
// The context only bounds the start itself; the program outlives it.
func (ExecStarter) Start(ctx context.Context, name string, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if info, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("binary not found: %w", err)
	} else if info.IsDir() {
		return nil, fmt.Errorf("binary path is a directory: %s", name)
	}

	//nolint:gosec // G204: the chat binary and its flags are user configuration
	cmd := exec.Command(name, args...)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// execProcess is a Process backed by an exec.Cmd.
type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *execProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

func (p *execProcess) Wait() error {
	_ = p.stdin.Close()

	return p.cmd.Wait()
}
