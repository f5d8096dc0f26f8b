package typing

import (
	"fmt"
	"strings"

	"github.com/artie-labs/ingest/lib/typing/decimal"
)

type OptionalIntegerKind int

const (
	NotSpecifiedKind OptionalIntegerKind = iota
	SmallIntegerKind
	IntegerKind
	BigIntegerKind
)

type Category string

const (
	NumericCategory Category = "numeric"
	DateCategory    Category = "date"
	BooleanCategory Category = "boolean"
	StringCategory  Category = "string"
	InvalidCategory Category = "invalid"
)

type KindDetails struct {
	Kind                   string
	ExtendedDecimalDetails *decimal.Details
	OptionalIntegerKind    *OptionalIntegerKind

	// OptionalStringPrecision is the max character length, nil means unbounded.
	OptionalStringPrecision *int32
}

var (
	Invalid = KindDetails{
		Kind: "invalid",
	}

	Float = KindDetails{
		Kind: "float",
	}

	Integer = KindDetails{
		Kind: "int",
	}

	EDecimal = KindDetails{
		Kind: "decimal",
	}

	Boolean = KindDetails{
		Kind: "bool",
	}

	String = KindDetails{
		Kind: "string",
	}

	Date = KindDetails{
		Kind: "date",
	}

	TimestampNTZ = KindDetails{
		Kind: "timestamp_ntz",
	}
)

func NewDecimalDetailsFromTemplate(details KindDetails, decimalDetails decimal.Details) KindDetails {
	if details.ExtendedDecimalDetails == nil {
		details.ExtendedDecimalDetails = &decimalDetails
	}

	return details
}

func BuildIntegerKind(optionalKind OptionalIntegerKind) KindDetails {
	return KindDetails{
		Kind:                Integer.Kind,
		OptionalIntegerKind: ToPtr(optionalKind),
	}
}

func BuildStringKind(maxLength int32) KindDetails {
	return KindDetails{
		Kind:                    String.Kind,
		OptionalStringPrecision: ToPtr(maxLength),
	}
}

func (k KindDetails) Category() Category {
	switch k.Kind {
	case Integer.Kind, Float.Kind, EDecimal.Kind:
		return NumericCategory
	case Date.Kind, TimestampNTZ.Kind:
		return DateCategory
	case Boolean.Kind:
		return BooleanCategory
	case String.Kind:
		return StringCategory
	default:
		return InvalidCategory
	}
}

func (k KindDetails) IsValid() bool {
	return k.Category() != InvalidCategory
}

func (k KindDetails) integerRank() OptionalIntegerKind {
	if k.OptionalIntegerKind == nil || *k.OptionalIntegerKind == NotSpecifiedKind {
		return IntegerKind
	}
	return *k.OptionalIntegerKind
}

// String renders the kind back into the token that [ParseKind] accepts.
func (k KindDetails) String() string {
	switch k.Kind {
	case Integer.Kind:
		switch k.integerRank() {
		case SmallIntegerKind:
			return "smallint"
		case BigIntegerKind:
			return "bigint"
		default:
			return "int"
		}
	case EDecimal.Kind:
		if k.ExtendedDecimalDetails == nil {
			return "decimal"
		}
		return fmt.Sprintf("decimal(%d,%d)", k.ExtendedDecimalDetails.Precision(), k.ExtendedDecimalDetails.Scale())
	case TimestampNTZ.Kind:
		return "datetime"
	case String.Kind:
		if k.OptionalStringPrecision == nil {
			return "nvarchar(max)"
		}
		return fmt.Sprintf("nvarchar(%d)", *k.OptionalStringPrecision)
	default:
		return k.Kind
	}
}

// Covers reports whether a column stored as [k] can hold every value of [requested] without narrowing.
func (k KindDetails) Covers(requested KindDetails) bool {
	if k.Category() != requested.Category() {
		return false
	}

	switch k.Kind {
	case Integer.Kind:
		return requested.Kind == Integer.Kind && k.integerRank() >= requested.integerRank()
	case Float.Kind:
		return requested.Kind == Float.Kind || requested.Kind == Integer.Kind
	case EDecimal.Kind:
		if requested.Kind != EDecimal.Kind {
			return false
		}
		if k.ExtendedDecimalDetails == nil || requested.ExtendedDecimalDetails == nil {
			return true
		}
		return k.ExtendedDecimalDetails.Covers(*requested.ExtendedDecimalDetails)
	case Date.Kind:
		return requested.Kind == Date.Kind
	case TimestampNTZ.Kind:
		// DATETIME2 can hold a DATE.
		return true
	case String.Kind:
		if k.OptionalStringPrecision == nil {
			return true
		}
		if requested.OptionalStringPrecision == nil {
			return false
		}
		return *k.OptionalStringPrecision >= *requested.OptionalStringPrecision
	default:
		return k.Kind == requested.Kind
	}
}

type DateFormat string

const (
	// UK is day first, e.g. 31/12/2024
	UK DateFormat = "UK"
	// US is month first, e.g. 12/31/2024
	US DateFormat = "US"
)

func ParseDateFormat(value string) (DateFormat, error) {
	switch DateFormat(strings.ToUpper(strings.TrimSpace(value))) {
	case "":
		return UK, nil
	case UK:
		return UK, nil
	case US:
		return US, nil
	default:
		return "", fmt.Errorf("unsupported date format: %q", value)
	}
}

func ToPtr[T any](v T) *T {
	return &v
}

// DefaultValueFromPtr dereferences [value], falling back to [defaultValue] for unset config fields.
func DefaultValueFromPtr[T any](value *T, defaultValue T) T {
	if value == nil {
		return defaultValue
	}
	return *value
}
