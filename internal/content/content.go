package content

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxMessageLength = 4000
	MaxNameLength    = 64
	maxIDLength      = 128
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9._:|-]+$`)

	ErrTooLong     = errors.New("content is too long")
	ErrInvalidUTF8 = errors.New("content is not valid UTF-8")
)

// IsBlank reports whether input has no visible text.
func IsBlank(input string) bool {
	return strings.TrimSpace(input) == ""
}

// ValidateMessage checks message text. Text is stored and relayed exactly as
// sent; escaping belongs to whatever renders it.
func ValidateMessage(input string) error {
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}
	if utf8.RuneCountInString(input) > MaxMessageLength {
		return ErrTooLong
	}
	return nil
}

// NormalizeName drops invalid UTF-8 and control characters from a display
// name, trims it and truncates it to MaxNameLength runes.
func NormalizeName(input string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(input, ""))
	out = strings.TrimSpace(out)
	if utf8.RuneCountInString(out) > MaxNameLength {
		out = strings.TrimSpace(string([]rune(out)[:MaxNameLength]))
	}
	return out
}

// ValidateID checks that an identifier issued by the identity provider or the
// store only contains alphanumerics and . _ : | - and is not empty.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > maxIDLength {
		return errors.New("id is too long")
	}
	if !idRegex.MatchString(id) {
		return errors.New("id contains invalid characters (allowed: alphanumeric, dot, colon, pipe, dash, underscore)")
	}
	return nil
}
