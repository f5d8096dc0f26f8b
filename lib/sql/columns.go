package sql

import (
	"strings"
)

func QuoteIdentifiers(identifiers []SafeIdentifier, dialect Dialect) []string {
	result := make([]string, len(identifiers))
	for i, identifier := range identifiers {
		result[i] = dialect.QuoteIdentifier(identifier)
	}
	return result
}

// JoinQuoted will quote every identifier and join them with a comma, e.g. [a],[b],[c]
func JoinQuoted(identifiers []SafeIdentifier, dialect Dialect) string {
	return strings.Join(QuoteIdentifiers(identifiers, dialect), ",")
}

// Placeholders returns n comma separated bind parameters.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
