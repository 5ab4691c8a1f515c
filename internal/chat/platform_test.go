package chat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutableFor(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{goos: "windows", want: "chat-windows-latest-avx2.exe"},
		{goos: "darwin", want: "chat-macos-latest-avx2"},
		{goos: "linux", want: "chat-ubuntu-latest-avx2"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := ExecutableFor(tt.goos)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutableFor_Unsupported(t *testing.T) {
	_, err := ExecutableFor("freebsd")

	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Contains(t, err.Error(), "freebsd")
}

func TestResolveExecutable(t *testing.T) {
	got, err := ResolveExecutable("/home/me/.nomic", "linux")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/me/.nomic", ExecutableLinux), got)
}
