package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_Format(t *testing.T) {
	e := Entry{System: "Be brief.", Prompt: "Hi", Response: "Hello."}

	assert.Equal(t, "### Instruction:\nBe brief.\n### Prompt: Hi\n### Response: Hello.", e.Format())
}

func TestStore_AppendCreatesThenAppends(t *testing.T) {
	s := Store{Dir: filepath.Join(t.TempDir(), "chats")}
	assert.False(t, s.Exists("trip"))

	require.NoError(t, s.Append("trip", Entry{System: "sys", Prompt: "one", Response: "1"}))
	require.NoError(t, s.Append("trip", Entry{System: "sys", Prompt: "two", Response: "2"}))

	assert.True(t, s.Exists("trip"))

	data, err := os.ReadFile(s.Path("trip"))
	require.NoError(t, err)
	assert.Equal(t,
		"### Instruction:\nsys\n### Prompt: one\n### Response: 1\n"+
			"### Instruction:\nsys\n### Prompt: two\n### Response: 2",
		string(data))
}

func TestStore_AppendRejectsBadNames(t *testing.T) {
	s := Store{Dir: t.TempDir()}

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, s.Append(name, Entry{}), ErrInvalidName, name)
	}
}

func TestStore_Clear(t *testing.T) {
	s := Store{Dir: t.TempDir()}
	require.NoError(t, s.Append("a", Entry{Prompt: "x"}))
	require.NoError(t, s.Append("b", Entry{Prompt: "y"}))

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, s.Exists("a"))

	n, err = Store{Dir: filepath.Join(s.Dir, "missing")}.Clear()
	require.NoError(t, err)
	assert.Zero(t, n)
}
