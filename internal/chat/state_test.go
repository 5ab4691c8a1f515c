package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyQuiescence, p)

	p, err = ParsePolicy(" Marker ")
	require.NoError(t, err)
	assert.Equal(t, PolicyMarker, p)

	_, err = ParsePolicy("eager")
	assert.Error(t, err)
}

func TestCompletionPolicy_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultQuiescenceWindow, PolicyQuiescence.DefaultWindow())
	assert.Equal(t, DefaultMarkerWindow, PolicyMarker.DefaultWindow())
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(Options{Policy: PolicyMarker})

	assert.Equal(t, DefaultMarkerWindow, s.opts.Quiescence)
	assert.Equal(t, DefaultReadyTimeout, s.opts.ReadyTimeout)
	assert.IsType(t, ExecStarter{}, s.opts.Starter)
	assert.NotEmpty(t, s.opts.GOOS)
	assert.Equal(t, StateClosed, s.State())
	assert.Zero(t, s.Pid())
}
