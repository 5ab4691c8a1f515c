package chat

import (
	"fmt"
	"path/filepath"
)

// Release binary names of the chat program per host platform.
const (
	ExecutableWindows = "chat-windows-latest-avx2.exe"
	ExecutableMacOS   = "chat-macos-latest-avx2"
	ExecutableLinux   = "chat-ubuntu-latest-avx2"
)

// ExecutableFor returns the chat binary filename for the given GOOS.
func ExecutableFor(goos string) (string, error) {
	switch goos {
	case "windows":
		return ExecutableWindows, nil
	case "darwin":
		return ExecutableMacOS, nil
	case "linux":
		return ExecutableLinux, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// ResolveExecutable joins the platform binary name onto dir.
func ResolveExecutable(dir, goos string) (string, error) {
	name, err := ExecutableFor(goos)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name), nil
}
