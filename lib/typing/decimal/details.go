package decimal

import (
	"fmt"
	"log/slog"
)

const (
	DefaultPrecision int32 = 18
	DefaultScale     int32 = 2
	// MaxPrecision is the largest precision SQL Server supports for DECIMAL / NUMERIC.
	MaxPrecision int32 = 38
)

type Details struct {
	scale     int32
	precision int32
}

func NewDetails(precision, scale int32) Details {
	if precision <= 0 {
		slog.Warn("Decimal precision is not positive, falling back to the default", slog.Any("precision", precision))
		precision = DefaultPrecision
	}

	if precision > MaxPrecision {
		slog.Warn("Decimal precision exceeds the maximum, capping it", slog.Any("precision", precision))
		precision = MaxPrecision
	}

	if scale < 0 {
		scale = 0
	}

	if scale > precision {
		// NUMERIC(5, 6) is not valid in SQL Server, keep room for the leading zero.
		precision = min(scale+1, MaxPrecision)
		scale = min(scale, precision)
	}

	return Details{
		scale:     scale,
		precision: precision,
	}
}

func (d Details) Scale() int32 {
	return d.scale
}

func (d Details) Precision() int32 {
	return d.precision
}

// Covers reports whether every value that fits in [other] also fits in [d].
func (d Details) Covers(other Details) bool {
	integerDigits := d.precision - d.scale
	otherIntegerDigits := other.precision - other.scale
	return d.scale >= other.scale && integerDigits >= otherIntegerDigits
}

// MsSQLKind
// Spec: https://learn.microsoft.com/en-us/sql/t-sql/data-types/decimal-and-numeric-transact-sql?view=sql-server-ver16#arguments
func (d Details) MsSQLKind() string {
	return fmt.Sprintf("DECIMAL(%d,%d)", d.precision, d.scale)
}
