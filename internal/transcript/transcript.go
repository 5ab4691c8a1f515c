// Package transcript stores chat history in the text format the chat program
// reloads with --load_log.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ekisa-team/gptrepl/internal/xfs"
)

// ErrInvalidName is returned for a chat name that is empty or contains a path separator.
var ErrInvalidName = errors.New("transcript: invalid chat name")

// Entry is one prompt/response turn.
type Entry struct {
	System   string
	Prompt   string
	Response string
}

// Format renders the entry as the chat program expects it in a log file.
func (e Entry) Format() string {
	s := fmt.Sprintf("### Instruction:\n%s\n### Prompt: %s\n### Response: %s", e.System, e.Prompt, e.Response)
	return strings.TrimSpace(s)
}

// Store keeps one transcript file per chat name in Dir.
type Store struct {
	Dir string
}

// Path returns the transcript file of a chat.
func (s Store) Path(name string) string {
	return filepath.Join(s.Dir, name+".txt")
}

// Exists reports whether a transcript file exists for name.
func (s Store) Exists(name string) bool {
	return ValidateName(name) == nil && xfs.IsFile(s.Path(name))
}

// Append adds an entry to the chat's transcript, creating Dir and the file when missing.
func (s Store) Append(name string, e Entry) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	if err := xfs.EnsureDir(s.Dir); err != nil {
		return err
	}

	path := s.Path(name)
	text := e.Format()
	if xfs.IsFile(path) {
		text = "\n" + text
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open %s: %w", path, err)
	}

	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("transcript: write %s: %w", path, err)
	}

	return f.Close()
}

// Clear deletes every transcript. A missing Dir is not an error.
func (s Store) Clear() (int, error) {
	return xfs.RemoveContents(s.Dir)
}

// ValidateName rejects names that would escape Dir.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}
