package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(t *testing.T, starter *fakeStarter, opts Options) *Session {
	t.Helper()

	s := newTestSession(t, starter, opts)
	require.NoError(t, s.Open(context.Background(), testOpenOptions()))

	return s
}

func TestSession_PromptBeforeOpen(t *testing.T) {
	starter := &fakeStarter{}
	s := newTestSession(t, starter, Options{})

	_, err := s.Prompt(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Empty(t, starter.startCalls())
}

func TestSession_PromptAfterClose(t *testing.T) {
	s := openTestSession(t, &fakeStarter{run: readyOnly}, Options{})
	require.NoError(t, s.Close(context.Background()))

	_, err := s.Prompt(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSession_ExchangeMarkerPolicy(t *testing.T) {
	starter := &fakeStarter{run: answering("hello\n", "world\n", ">")}
	s := openTestSession(t, starter, Options{Policy: PolicyMarker, Quiescence: 5 * time.Second})

	res, err := s.Exchange(context.Background(), "Say hello")
	require.NoError(t, err)

	assert.Equal(t, "hello\nworld\n>", res.Raw)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, ReasonMarker, res.Reason)
	assert.NotEmpty(t, res.ID)
	assert.Less(t, res.Duration, 5*time.Second)
}

func TestSession_ExchangeQuiescencePolicy(t *testing.T) {
	starter := &fakeStarter{run: answering("hello\n", "world\n", ">")}
	s := openTestSession(t, starter, Options{Quiescence: 100 * time.Millisecond})

	res, err := s.Exchange(context.Background(), "Say hello")
	require.NoError(t, err)

	assert.Equal(t, "hello\nworld\n>", res.Raw)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, ReasonQuiescence, res.Reason)
}

func TestSession_ExchangeWritesPromptLine(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 50 * time.Millisecond})

	_, err := s.Exchange(context.Background(), "What is Go?")
	require.NoError(t, err)

	select {
	case line := <-starter.proc(0).lines:
		assert.Equal(t, "What is Go?", line)
	case <-time.After(time.Second):
		t.Fatal("prompt was not written to stdin")
	}
}

func TestSession_SilentProgramYieldsEmptyResult(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 50 * time.Millisecond})

	res, err := s.Exchange(context.Background(), "anyone there?")
	require.NoError(t, err)
	assert.Empty(t, res.Raw)
	assert.Empty(t, res.Text)
	assert.Equal(t, ReasonQuiescence, res.Reason)

	_, err = s.Prompt(context.Background(), "anyone there?")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSession_PromptReturnsSanitizedText(t *testing.T) {
	starter := &fakeStarter{run: answering("  Paris is the capital.\n", "> ")}
	s := openTestSession(t, starter, Options{Policy: PolicyMarker})

	text, err := s.Prompt(context.Background(), "Capital of France?")

	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", text)
}

func TestSession_StreamErrorRejectsExchange(t *testing.T) {
	boom := errors.New("pipe broke")
	starter := &fakeStarter{run: func(p *fakeProcess) {
		readyOnly(p)
		<-p.lines
		p.print("partial ")
		p.failStream(boom)
	}}
	s := openTestSession(t, starter, Options{Quiescence: 5 * time.Second})

	_, err := s.Exchange(context.Background(), "hi")

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.ErrorIs(t, err, ErrStream)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_ProgramExitRejectsExchange(t *testing.T) {
	starter := &fakeStarter{run: func(p *fakeProcess) {
		readyOnly(p)
		<-p.lines
		p.print("segmentation fault\n")
		p.exit(errors.New("exit status 139"))
	}}
	s := openTestSession(t, starter, Options{Quiescence: 5 * time.Second})

	_, err := s.Exchange(context.Background(), "hi")

	var term *UnexpectedTerminationError
	require.ErrorAs(t, err, &term)
	assert.ErrorIs(t, err, ErrStream)
	assert.EqualError(t, term.Err, "exit status 139")

	require.NoError(t, s.Close(context.Background()))
}

func TestSession_CloseRejectsPendingExchange(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 10 * time.Second})

	errs := make(chan error, 1)
	go func() {
		_, err := s.Exchange(context.Background(), "a long question")
		errs <- err
	}()

	<-starter.proc(0).lines
	require.NoError(t, s.Close(context.Background()))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending exchange was not rejected by Close")
	}
}

func TestSession_ConcurrentExchangeRejected(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 10 * time.Second})

	errs := make(chan error, 1)
	go func() {
		_, err := s.Exchange(context.Background(), "first")
		errs <- err
	}()
	<-starter.proc(0).lines

	_, err := s.Exchange(context.Background(), "second")
	assert.ErrorIs(t, err, ErrExchangeInFlight)

	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, <-errs, ErrSessionClosed)
}

func TestSession_ExchangeCanceled(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Exchange(ctx, "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Close(context.Background()))
}

func TestSession_IdleOutputIsDiscarded(t *testing.T) {
	starter := &fakeStarter{run: readyOnly}
	s := openTestSession(t, starter, Options{Quiescence: 100 * time.Millisecond})
	p := starter.proc(0)

	go func() {
		<-p.lines
		p.print("answer one\n")
	}()
	res, err := s.Exchange(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "answer one", res.Text)

	p.print("stray output\n")
	require.Eventually(t, func() bool {
		return len(s.live.Load().chunks) == 1
	}, time.Second, 5*time.Millisecond)

	go func() {
		<-p.lines
		p.print("answer two\n")
	}()
	res, err = s.Exchange(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "answer two\n", res.Raw)
}

func TestSession_SequentialExchanges(t *testing.T) {
	starter := &fakeStarter{run: answering("ok\n", "> ")}
	s := openTestSession(t, starter, Options{Policy: PolicyMarker})

	for i := 0; i < 3; i++ {
		text, err := s.Prompt(context.Background(), "ping")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	}
}
