package tabular

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderID int

func (o orderID) String() string {
	return "order-" + string(rune('0'+int(o)))
}

func TestNewFrame(t *testing.T) {
	{
		// Valid
		frame, err := NewFrame([]string{"order_id", "Price"}, [][]any{{1, "9.99"}, {2, nil}})
		assert.NoError(t, err)
		assert.Equal(t, 2, frame.Len())

		idx, ok := frame.ColumnIndex("PRICE")
		assert.True(t, ok)
		assert.Equal(t, 1, idx)
		assert.False(t, frame.HasColumn("missing"))
	}
	{
		// Duplicate columns
		_, err := NewFrame([]string{"price", "PRICE"}, nil)
		assert.ErrorContains(t, err, `duplicate column "PRICE"`)
	}
	{
		// Ragged row
		_, err := NewFrame([]string{"a", "b"}, [][]any{{1, 2}, {1}})
		assert.ErrorContains(t, err, "row 1 has 1 values, expected 2")
	}
	{
		// No columns
		_, err := NewFrame(nil, nil)
		assert.ErrorContains(t, err, "frame has no columns")
	}
	{
		// Blank column name
		_, err := NewFrame([]string{"a", " "}, nil)
		assert.ErrorContains(t, err, "column 1 has an empty name")
	}
}

func TestFrame_ColumnIndexWithoutValidate(t *testing.T) {
	frame := &Frame{Columns: []string{"a", "B"}}
	idx, ok := frame.ColumnIndex("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = frame.ColumnIndex("c")
	assert.False(t, ok)
}

func TestFrame_TextRow(t *testing.T) {
	frame, err := NewFrame([]string{"a", "b", "c", "d"}, [][]any{{int64(5), nil, true, math.NaN()}})
	require.NoError(t, err)
	assert.Equal(t, []any{"5", nil, "1", nil}, frame.TextRow(0))
}

func TestFormatValue(t *testing.T) {
	var nilString *string
	hello := "hello"

	testCases := []struct {
		name      string
		value     any
		expected  string
		expectNil bool
	}{
		{name: "nil", value: nil, expectNil: true},
		{name: "nil pointer", value: nilString, expectNil: true},
		{name: "string pointer", value: &hello, expected: "hello"},
		{name: "string", value: " 1,234 ", expected: " 1,234 "},
		{name: "bytes", value: []byte("abc"), expected: "abc"},
		{name: "false", value: false, expected: "0"},
		{name: "int", value: 42, expected: "42"},
		{name: "int8", value: int8(-8), expected: "-8"},
		{name: "uint64", value: uint64(18446744073709551615), expected: "18446744073709551615"},
		{name: "float64", value: 1234.5, expected: "1234.5"},
		{name: "large float64", value: 1e21, expected: "1000000000000000000000"},
		{name: "float32", value: float32(0.1), expected: "0.1"},
		{name: "inf", value: math.Inf(1), expectNil: true},
		{name: "time", value: time.Date(2024, 12, 31, 8, 30, 0, 0, time.UTC), expected: "2024-12-31 08:30:00.000"},
		{name: "zero time", value: time.Time{}, expectNil: true},
		{name: "stringer", value: orderID(7), expected: "order-7"},
		{name: "fallback", value: []int{1, 2}, expected: "[1 2]"},
	}

	for _, tc := range testCases {
		value, ok := FormatValue(tc.value)
		if tc.expectNil {
			assert.False(t, ok, tc.name)
			continue
		}

		assert.True(t, ok, tc.name)
		assert.Equal(t, tc.expected, value, tc.name)
	}
}
