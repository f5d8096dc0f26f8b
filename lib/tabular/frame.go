package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/artie-labs/ingest/lib/maputil"
	"github.com/artie-labs/ingest/lib/stringutil"
)

// Frame is an in-memory table handed to us by the file layer.
type Frame struct {
	Columns []string
	Rows    [][]any

	index *maputil.NameIndex[int]
}

func NewFrame(columns []string, rows [][]any) (*Frame, error) {
	f := &Frame{Columns: columns, Rows: rows}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate makes sure column names are unique (case-insensitive) and every row is as wide as the header.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}

	if len(f.Columns) == 0 {
		return fmt.Errorf("frame has no columns")
	}

	index := maputil.NewNameIndex[int]()
	for i, col := range f.Columns {
		if stringutil.IsBlank(col) {
			return fmt.Errorf("column %d has an empty name", i)
		}

		if !index.Add(col, i) {
			return fmt.Errorf("duplicate column %q", col)
		}
	}

	for i, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(f.Columns))
		}
	}

	f.index = index
	return nil
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnIndex looks up a column case-insensitively.
func (f *Frame) ColumnIndex(name string) (int, bool) {
	if f.index != nil {
		return f.index.Get(name)
	}

	for i, col := range f.Columns {
		if strings.EqualFold(col, name) {
			return i, true
		}
	}
	return -1, false
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.ColumnIndex(name)
	return ok
}

// TextRow renders the row the way it is stored in staging: strings, with nil for NULL.
func (f *Frame) TextRow(i int) []any {
	row := f.Rows[i]
	out := make([]any, len(row))
	for j, value := range row {
		if text, ok := FormatValue(value); ok {
			out[j] = text
		}
	}
	return out
}

// FormatValue renders a value as text, returning false when it should be stored as NULL.
func FormatValue(value any) (string, bool) {
	switch castedValue := value.(type) {
	case nil:
		return "", false
	case string:
		return castedValue, true
	case *string:
		if castedValue == nil {
			return "", false
		}
		return *castedValue, true
	case []byte:
		return string(castedValue), true
	case bool:
		if castedValue {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(castedValue), true
	case int8:
		return strconv.FormatInt(int64(castedValue), 10), true
	case int16:
		return strconv.FormatInt(int64(castedValue), 10), true
	case int32:
		return strconv.FormatInt(int64(castedValue), 10), true
	case int64:
		return strconv.FormatInt(castedValue, 10), true
	case uint:
		return strconv.FormatUint(uint64(castedValue), 10), true
	case uint8:
		return strconv.FormatUint(uint64(castedValue), 10), true
	case uint16:
		return strconv.FormatUint(uint64(castedValue), 10), true
	case uint32:
		return strconv.FormatUint(uint64(castedValue), 10), true
	case uint64:
		return strconv.FormatUint(castedValue, 10), true
	case float32:
		return formatFloat(float64(castedValue), 32)
	case float64:
		return formatFloat(castedValue, 64)
	case time.Time:
		if castedValue.IsZero() {
			return "", false
		}
		// ODBC canonical, which every date style chain accepts.
		return castedValue.Format("2006-01-02 15:04:05.000"), true
	case fmt.Stringer:
		return castedValue.String(), true
	default:
		return fmt.Sprint(castedValue), true
	}
}

func formatFloat(value float64, bitSize int) (string, bool) {
	// NaN is how dataframes mark missing values.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", false
	}
	return strconv.FormatFloat(value, 'f', -1, bitSize), true
}
