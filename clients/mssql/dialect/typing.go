package dialect

import (
	"fmt"
	"strings"

	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/decimal"
)

// NVARCHAR(n) only goes up to 4000, anything longer has to be NVARCHAR(MAX).
const maxBoundedNVarChar = 4000

func (MSSQLDialect) DataTypeForKind(kindDetails typing.KindDetails) string {
	switch kindDetails.Kind {
	case typing.Float.Kind:
		return "FLOAT"
	case typing.Integer.Kind:
		if kindDetails.OptionalIntegerKind != nil {
			switch *kindDetails.OptionalIntegerKind {
			case typing.SmallIntegerKind:
				return "SMALLINT"
			case typing.BigIntegerKind:
				return "BIGINT"
			}
		}
		return "INT"
	case typing.EDecimal.Kind:
		details := decimal.NewDetails(decimal.DefaultPrecision, decimal.DefaultScale)
		if kindDetails.ExtendedDecimalDetails != nil {
			details = *kindDetails.ExtendedDecimalDetails
		}
		return details.MsSQLKind()
	case typing.Boolean.Kind:
		return "BIT"
	case typing.Date.Kind:
		return "DATE"
	case typing.TimestampNTZ.Kind:
		// DATETIME2 has a wider range and more precision than DATETIME.
		return "DATETIME2"
	case typing.String.Kind:
		if kindDetails.OptionalStringPrecision != nil && *kindDetails.OptionalStringPrecision <= maxBoundedNVarChar {
			return fmt.Sprintf("NVARCHAR(%d)", *kindDetails.OptionalStringPrecision)
		}
		return "NVARCHAR(MAX)"
	}

	return kindDetails.Kind
}

// KindForDataType maps an INFORMATION_SCHEMA.COLUMNS row back into [typing.KindDetails].
func (MSSQLDialect) KindForDataType(dataType string, charMaxLength, precision, scale *int64) (typing.KindDetails, error) {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "char", "varchar", "nchar", "nvarchar":
		// A length of -1 means MAX.
		if charMaxLength == nil || *charMaxLength < 0 {
			return typing.String, nil
		}
		return typing.BuildStringKind(int32(*charMaxLength)), nil
	case "text", "ntext":
		return typing.String, nil
	case "decimal", "numeric":
		if precision == nil || scale == nil {
			return typing.NewDecimalDetailsFromTemplate(typing.EDecimal, decimal.NewDetails(decimal.DefaultPrecision, decimal.DefaultScale)), nil
		}
		return typing.NewDecimalDetailsFromTemplate(typing.EDecimal, decimal.NewDetails(int32(*precision), int32(*scale))), nil
	case "tinyint", "smallint":
		return typing.BuildIntegerKind(typing.SmallIntegerKind), nil
	case "int":
		return typing.BuildIntegerKind(typing.IntegerKind), nil
	case "bigint":
		return typing.BuildIntegerKind(typing.BigIntegerKind), nil
	case "float", "real":
		return typing.Float, nil
	case "date":
		return typing.Date, nil
	case "datetime", "datetime2", "smalldatetime":
		return typing.TimestampNTZ, nil
	case "bit":
		return typing.Boolean, nil
	default:
		return typing.Invalid, fmt.Errorf("unsupported data type: %q", dataType)
	}
}
