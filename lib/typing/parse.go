package typing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/artie-labs/ingest/lib/typing/decimal"
)

// ParseDataTypeDefinition splits a definition like "decimal(10, 2)" into its name and parameters.
func ParseDataTypeDefinition(value string) (string, []string, error) {
	value = strings.TrimSpace(value)
	idx := strings.Index(value, "(")
	if idx == -1 {
		return strings.ToLower(value), nil, nil
	}

	if !strings.HasSuffix(value, ")") {
		return "", nil, fmt.Errorf("missing closing parenthesis in %q", value)
	}

	name := strings.ToLower(strings.TrimSpace(value[:idx]))
	inner := value[idx+1 : len(value)-1]
	if strings.TrimSpace(inner) == "" {
		return "", nil, fmt.Errorf("empty parameters in %q", value)
	}

	var parameters []string
	for _, part := range strings.Split(inner, ",") {
		parameters = append(parameters, strings.TrimSpace(part))
	}

	return name, parameters, nil
}

func ParseNumeric(parts []string) (KindDetails, error) {
	if len(parts) == 0 || len(parts) > 2 {
		return Invalid, fmt.Errorf("invalid number of parts: %d", len(parts))
	}

	var parsedNumbers []int32
	for _, part := range parts {
		parsedNumber, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return Invalid, fmt.Errorf("failed to parse number: %w", err)
		}

		parsedNumbers = append(parsedNumbers, int32(parsedNumber))
	}

	var scale int32
	if len(parsedNumbers) == 2 {
		scale = parsedNumbers[1]
	}

	return NewDecimalDetailsFromTemplate(EDecimal, decimal.NewDetails(parsedNumbers[0], scale)), nil
}

func parseStringLength(parts []string) (KindDetails, error) {
	if len(parts) == 0 {
		return String, nil
	}

	if len(parts) > 1 {
		return Invalid, fmt.Errorf("invalid number of parts: %d", len(parts))
	}

	if strings.EqualFold(parts[0], "max") {
		return String, nil
	}

	length, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return Invalid, fmt.Errorf("failed to parse string length: %w", err)
	}

	if length <= 0 {
		return Invalid, fmt.Errorf("string length must be positive, got %d", length)
	}

	return BuildStringKind(int32(length)), nil
}

// ParseKind converts a column type token from configuration into [KindDetails].
func ParseKind(token string) (KindDetails, error) {
	name, parameters, err := ParseDataTypeDefinition(token)
	if err != nil {
		return Invalid, err
	}

	switch name {
	case "int", "integer":
		return BuildIntegerKind(IntegerKind), nil
	case "bigint":
		return BuildIntegerKind(BigIntegerKind), nil
	case "smallint", "tinyint":
		return BuildIntegerKind(SmallIntegerKind), nil
	case "float", "real", "double":
		return Float, nil
	case "decimal", "numeric":
		if len(parameters) == 0 {
			return NewDecimalDetailsFromTemplate(EDecimal, decimal.NewDetails(decimal.DefaultPrecision, decimal.DefaultScale)), nil
		}
		return ParseNumeric(parameters)
	case "date":
		return Date, nil
	case "datetime", "datetime2", "timestamp":
		return TimestampNTZ, nil
	case "bit", "bool", "boolean":
		return Boolean, nil
	case "nvarchar", "varchar", "string", "nchar", "char":
		return parseStringLength(parameters)
	case "text", "ntext":
		return String, nil
	case "":
		return Invalid, fmt.Errorf("type cannot be empty")
	default:
		return Invalid, fmt.Errorf("unsupported type: %q", token)
	}
}
