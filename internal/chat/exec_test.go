package chat

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "GPTREPL_CHAT_HELPER"

// TestMain doubles as a minimal chat program when helperEnv is set, so the
// exec-backed path can be tested against a real child process.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		runHelperChat()
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func runHelperChat() {
	fmt.Print("helper: model loaded\n> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fmt.Printf("echo: %s\n> ", scanner.Text())
	}
}

func TestExecStarter_MissingBinary(t *testing.T) {
	_, err := ExecStarter{}.Start(context.Background(), "/does/not/exist/chat", nil)

	assert.ErrorContains(t, err, "binary not found")
}

func TestExecStarter_Directory(t *testing.T) {
	_, err := ExecStarter{}.Start(context.Background(), t.TempDir(), nil)

	assert.ErrorContains(t, err, "is a directory")
}

func TestExecStarter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecStarter{}.Start(ctx, os.Args[0], nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_RealProcessRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}
	t.Setenv(helperEnv, "1")

	s := NewSession(Options{Policy: PolicyMarker, ReadyTimeout: 10 * time.Second})
	o := testOpenOptions()
	o.Executable = os.Args[0]

	require.NoError(t, s.Open(context.Background(), o))
	assert.NotZero(t, s.Pid())

	text, err := s.Prompt(context.Background(), "hi there")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi there", text)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, StateClosed, s.State())
}
