package validation

import (
	"fmt"
	"math"
	"strings"
)

type Class string

const (
	TypeMismatch    Class = "type_mismatch"
	OutOfRange      Class = "out_of_range"
	SchemaMismatch  Class = "schema_mismatch"
	EmptyRequired   Class = "empty_required"
	MissingColumn   Class = "missing_column"
	ExtraColumn     Class = "extra_column"
	StringTooLong   Class = "string_too_long"
	PatternMismatch Class = "pattern_mismatch"
	Distribution    Class = "distribution"
	ValidatorError  Class = "validator_error"
	NoRows          Class = "no_rows"
)

type Severity string

const (
	// Blocking issues stop the upload before anything reaches the destination.
	Blocking Severity = "blocking"
	Advisory Severity = "advisory"
)

// SeverityFor returns [Blocking] once the failing percentage goes over the threshold.
func SeverityFor(percentage, thresholdPercent float64) Severity {
	if percentage > thresholdPercent {
		return Blocking
	}
	return Advisory
}

// Percentage of [count] over [total], rounded to two decimals.
func Percentage(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10_000) / 100
}

type Issue struct {
	Column       string
	Class        Class
	FailingCount int64
	Percentage   float64
	// Examples holds up to [Options.MaxExamples] offending values.
	Examples  []string
	Severity  Severity
	Message   string
	Validator string
}

func (i Issue) IsBlocking() bool {
	return i.Severity == Blocking
}

func (i Issue) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", i.Severity, i.Class)
	if i.Column != "" {
		fmt.Fprintf(&sb, " on %q", i.Column)
	}
	if i.Message != "" {
		sb.WriteString(": " + i.Message)
	}
	if len(i.Examples) > 0 {
		fmt.Fprintf(&sb, " (e.g. %s)", strings.Join(i.Examples, ", "))
	}
	return sb.String()
}
