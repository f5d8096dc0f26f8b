package sql

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type bracketDialect struct {
	Dialect
}

func (bracketDialect) QuoteIdentifier(identifier SafeIdentifier) string {
	return fmt.Sprintf("[%s]", identifier.String())
}

func TestQuoteIdentifiers(t *testing.T) {
	identifiers := []SafeIdentifier{MustSanitize("a"), MustSanitize("b"), MustSanitize("c")}
	assert.Equal(t, []string{"[a]", "[b]", "[c]"}, QuoteIdentifiers(identifiers, bracketDialect{}))
	assert.Equal(t, "[a],[b],[c]", JoinQuoted(identifiers, bracketDialect{}))
	assert.Empty(t, QuoteIdentifiers(nil, bracketDialect{}))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}
