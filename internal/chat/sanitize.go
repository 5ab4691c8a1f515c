package chat

import (
	"strings"
)

// Marker is the chat program's own "ready for input" cue.
const Marker = ">"

// mojibake is U+FFFD after its UTF-8 bytes were decoded as Latin-1,
// which some MPT models emit instead of line endings.
const mojibake = "\u00ef\u00bf\u00bd"

// Sanitize turns the raw accumulated output of one exchange into a clean answer.
//
// A trailing marker is stripped, the text is split on the line convention found
// (carriage return, newline, then the replacement character), lines without any
// letter, digit, backtick, brace, hash or dash are dropped as control noise, and
// the survivors are joined with single spaces.
func Sanitize(raw string) string {
	text := strings.ToValidUTF8(raw, "\uFFFD")
	text = strings.TrimSuffix(text, Marker)

	var lines []string
	switch {
	case strings.Contains(text, "\r"):
		lines = strings.Split(text, "\r")
	case strings.Contains(text, "\n"):
		lines = strings.Split(text, "\n")
	case strings.Contains(text, mojibake):
		lines = strings.Split(text, mojibake)
	case strings.Contains(text, "\uFFFD"):
		lines = strings.Split(text, "\uFFFD")
	default:
		lines = []string{text}
	}

	kept := lines[:0]
	for _, line := range lines {
		if hasAnswerChar(line) {
			kept = append(kept, line)
		}
	}

	switch len(kept) {
	case 0:
		return ""
	case 1:
		return strings.TrimSpace(kept[0])
	default:
		return strings.Join(kept, " ")
	}
}

// hasAnswerChar reports whether line contains at least one allow-set character.
func hasAnswerChar(line string) bool {
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return true
		case r == '`', r == '{', r == '}', r == '#', r == '-':
			return true
		}
	}

	return false
}
