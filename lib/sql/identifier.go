package sql

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// MaxIdentifierLength is the longest identifier SQL Server accepts.
const MaxIdentifierLength = 128

var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// blockedKeywords are rejected even though they match [identifierRegex], since they can alter schema or execute code.
var blockedKeywords = []string{
	"alter",
	"create",
	"delete",
	"drop",
	"exec",
	"execute",
	"grant",
	"insert",
	"merge",
	"revoke",
	"shutdown",
	"sp_executesql",
	"truncate",
	"update",
	"xp_cmdshell",
}

// SafeIdentifier is a schema, table, column or index name that has passed [Sanitize].
// The only way to build one outside of this package is through [Sanitize].
type SafeIdentifier struct {
	name string
}

func (s SafeIdentifier) String() string {
	return s.name
}

func (s SafeIdentifier) IsZero() bool {
	return s.name == ""
}

// Sanitize validates a dynamically sourced identifier so that it can be interpolated into SQL text.
func Sanitize(identifier string) (SafeIdentifier, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return SafeIdentifier{}, fmt.Errorf("%w: identifier cannot be empty", ErrInvalidIdentifier)
	}

	if len(identifier) > MaxIdentifierLength {
		return SafeIdentifier{}, fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidIdentifier, truncateForError(identifier), MaxIdentifierLength)
	}

	if !identifierRegex.MatchString(identifier) {
		return SafeIdentifier{}, fmt.Errorf("%w: %q must start with a letter or underscore and only contain letters, digits and underscores", ErrInvalidIdentifier, truncateForError(identifier))
	}

	if slices.Contains(blockedKeywords, strings.ToLower(identifier)) {
		return SafeIdentifier{}, fmt.Errorf("%w: %q is a reserved keyword", ErrInvalidIdentifier, identifier)
	}

	return SafeIdentifier{name: identifier}, nil
}

// SanitizeAll sanitizes every identifier and fails on the first invalid one.
func SanitizeAll(identifiers []string) ([]SafeIdentifier, error) {
	out := make([]SafeIdentifier, len(identifiers))
	for i, identifier := range identifiers {
		safe, err := Sanitize(identifier)
		if err != nil {
			return nil, err
		}
		out[i] = safe
	}
	return out, nil
}

// MustSanitize is only meant for identifiers that are constants in our code.
func MustSanitize(identifier string) SafeIdentifier {
	safe, err := Sanitize(identifier)
	if err != nil {
		panic(err)
	}
	return safe
}

func truncateForError(value string) string {
	if len(value) > 50 {
		return value[:50] + "..."
	}
	return value
}
