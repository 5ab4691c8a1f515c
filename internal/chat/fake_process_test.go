package chat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// --- Fake program ---

// fakeProcess is an in-memory chat program driven by the test.
type fakeProcess struct {
	pid     int
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	lines   chan string
	done    chan struct{}
	once    sync.Once
	waitErr error
	killed  atomic.Bool
	waited  atomic.Bool
}

func newFakeProcess(pid int) *fakeProcess {
	p := &fakeProcess{
		pid:   pid,
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()

	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(p.stdinR)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()

	return p
}

func (p *fakeProcess) Stdin() io.Writer  { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader { return p.stdoutR }
func (p *fakeProcess) Pid() int          { return p.pid }

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	p.waited.Store(true)
	return p.waitErr
}

// print writes each chunk with its own write, so each arrives as its own read.
func (p *fakeProcess) print(chunks ...string) {
	for _, c := range chunks {
		if _, err := io.WriteString(p.stdoutW, c); err != nil {
			return
		}
	}
}

// exit simulates the program terminating on its own.
func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.waitErr = err
		_ = p.stdoutW.Close()
		_ = p.stdinR.Close()
		close(p.done)
	})
}

// failStream makes the next stdout read fail without the program exiting.
func (p *fakeProcess) failStream(err error) {
	_ = p.stdoutW.CloseWithError(err)
}

// --- Fake starter ---

type startCall struct {
	name string
	args []string
	// previousReaped records whether every earlier process had been waited on.
	previousReaped bool
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	procs []*fakeProcess
	err   error
	run   func(p *fakeProcess)
}

func (s *fakeStarter) Start(_ context.Context, name string, args []string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := true
	for _, p := range s.procs {
		reaped = reaped && p.waited.Load()
	}
	s.calls = append(s.calls, startCall{name: name, args: args, previousReaped: reaped})

	if s.err != nil {
		return nil, s.err
	}

	p := newFakeProcess(1000 + len(s.procs))
	s.procs = append(s.procs, p)
	if s.run != nil {
		go s.run(p)
	}

	return p, nil
}

func (s *fakeStarter) startCalls() []startCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]startCall(nil), s.calls...)
}

func (s *fakeStarter) proc(i int) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.procs[i]
}

// --- Program behaviours ---

// readyOnly prints a banner and the ready marker, then leaves stdin to the test.
func readyOnly(p *fakeProcess) {
	p.print("gptj_model_load: loading model\n", "> ")
}

// answering prints the ready marker and answers every prompt with chunks.
func answering(chunks ...string) func(p *fakeProcess) {
	return func(p *fakeProcess) {
		readyOnly(p)
		for range p.lines {
			p.print(chunks...)
		}
	}
}
