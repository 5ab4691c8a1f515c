package chat

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateClosed means no process is running.
	StateClosed State = iota

	// StateOpening means the process was spawned and the ready marker is awaited.
	StateOpening

	// StateOpen means the program accepts prompts.
	StateOpen

	// StateClosing means termination was requested and the exit is awaited.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CompletionPolicy decides when an exchange is considered answered.
type CompletionPolicy int

const (
	// PolicyQuiescence ends an exchange only after a full window without output.
	// It never cuts an answer that happens to contain the marker, at the cost of
	// always paying the window.
	PolicyQuiescence CompletionPolicy = iota

	// PolicyMarker ends an exchange as soon as a chunk contains the marker,
	// falling back to the quiescence window. Answers that print the marker
	// themselves (code, quotes) are cut short.
	PolicyMarker
)

// Default quiescence windows for each policy.
const (
	DefaultQuiescenceWindow = 4 * time.Second
	DefaultMarkerWindow     = 16 * time.Second
)

func (p CompletionPolicy) String() string {
	switch p {
	case PolicyQuiescence:
		return "quiescence"
	case PolicyMarker:
		return "marker"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// DefaultWindow returns the quiescence window used by the policy when none is configured.
func (p CompletionPolicy) DefaultWindow() time.Duration {
	if p == PolicyMarker {
		return DefaultMarkerWindow
	}

	return DefaultQuiescenceWindow
}

// ParsePolicy parses a policy name. The empty string selects PolicyQuiescence.
func ParsePolicy(s string) (CompletionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quiescence":
		return PolicyQuiescence, nil
	case "marker":
		return PolicyMarker, nil
	default:
		return 0, fmt.Errorf("chat: unknown completion policy %q", s)
	}
}

// CompletionReason records why an exchange ended.
type CompletionReason string

const (
	// ReasonMarker means a chunk contained the marker.
	ReasonMarker CompletionReason = "marker"

	// ReasonQuiescence means the quiescence window elapsed without output.
	ReasonQuiescence CompletionReason = "quiescence"
)
