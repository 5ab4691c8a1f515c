package chat

import (
	"errors"
	"fmt"
)

// Error definitions for the chat package.
var (
	// ErrNotInitialized is returned when a prompt is sent without an open session.
	ErrNotInitialized = errors.New("chat: session is not initialized")

	// ErrUnsupportedPlatform is returned for a host without a released chat binary.
	ErrUnsupportedPlatform = errors.New("chat: platform is not supported")

	// ErrSessionClosed is returned to a pending exchange when the session is closed under it.
	ErrSessionClosed = errors.New("chat: session closed while an exchange was pending")

	// ErrExchangeInFlight is returned when a prompt is sent while another one is unresolved.
	ErrExchangeInFlight = errors.New("chat: another exchange is still pending")

	// ErrEmptyResponse is returned when the sanitized answer is empty.
	ErrEmptyResponse = errors.New("chat: empty response")

	// ErrReadyTimeout is returned when the program never printed its ready marker.
	ErrReadyTimeout = errors.New("chat: program did not become ready in time")

	// ErrStream matches every stream-level failure of an exchange.
	ErrStream = errors.New("chat: output stream failed")
)

// StartError indicates the chat program could not be started.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("chat: failed to start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// StreamError indicates the output channel reported an error mid-exchange.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("chat: output stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is reports StreamError as ErrStream.
func (e *StreamError) Is(target error) bool {
	return target == ErrStream
}

// UnexpectedTerminationError indicates the process exited while it was still needed.
type UnexpectedTerminationError struct {
	// Err is the process wait error, nil on a clean exit.
	Err error
}

func (e *UnexpectedTerminationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat: process exited unexpectedly: %v", e.Err)
	}

	return "chat: process exited unexpectedly"
}

func (e *UnexpectedTerminationError) Unwrap() error {
	return e.Err
}

// Is reports UnexpectedTerminationError as ErrStream.
func (e *UnexpectedTerminationError) Is(target error) bool {
	return target == ErrStream
}
