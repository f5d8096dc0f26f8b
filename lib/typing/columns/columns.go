package columns

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
)

// Column is a column that exists (or should exist) in a table.
type Column struct {
	name        string
	KindDetails typing.KindDetails
}

func NewColumn(name string, kd typing.KindDetails) Column {
	return Column{
		name:        name,
		KindDetails: kd,
	}
}

func (c Column) Name() string {
	return c.name
}

// ColumnSpec is the configured contract for a destination column.
type ColumnSpec struct {
	Name        string
	KindDetails typing.KindDetails
	// Required columns must be present in every upload.
	Required bool
	// Nullable columns may contain NULL or blank values, non-nullable ones fail validation when they do.
	Nullable bool

	Min     *float64
	Max     *float64
	MinDate *time.Time
	MaxDate *time.Time
	// Pattern is a LIKE pattern that every non-null value has to match.
	Pattern string

	TrueValues  []string
	FalseValues []string
}

func (c ColumnSpec) Column() Column {
	return NewColumn(c.Name, c.KindDetails)
}

func (c ColumnSpec) Identifier() (sql.SafeIdentifier, error) {
	return sql.Sanitize(c.Name)
}

// MaxLength returns the configured max length, zero means unbounded.
func (c ColumnSpec) MaxLength() int32 {
	if c.KindDetails.OptionalStringPrecision == nil {
		return 0
	}
	return *c.KindDetails.OptionalStringPrecision
}

func (c ColumnSpec) Validate() error {
	if _, err := c.Identifier(); err != nil {
		return err
	}

	if !c.KindDetails.IsValid() {
		return fmt.Errorf("column %q has an invalid type", c.Name)
	}

	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("column %q has min %v greater than max %v", c.Name, *c.Min, *c.Max)
	}

	if c.MinDate != nil && c.MaxDate != nil && c.MinDate.After(*c.MaxDate) {
		return fmt.Errorf("column %q has minDate after maxDate", c.Name)
	}

	if (c.Min != nil || c.Max != nil) && c.KindDetails.Category() != typing.NumericCategory {
		return fmt.Errorf("column %q sets a numeric range but is %s", c.Name, c.KindDetails.String())
	}

	if (c.MinDate != nil || c.MaxDate != nil) && c.KindDetails.Category() != typing.DateCategory {
		return fmt.Errorf("column %q sets a date range but is %s", c.Name, c.KindDetails.String())
	}

	return nil
}

// Columns is a case-insensitive, ordered set of columns.
type Columns struct {
	columns []Column
	sync.RWMutex
}

func NewColumns(columns []Column) *Columns {
	c := &Columns{}
	for _, column := range columns {
		c.AddColumn(column)
	}
	return c
}

func (c *Columns) AddColumn(col Column) {
	if col.name == "" {
		return
	}

	if _, isOk := c.GetColumn(col.name); isOk {
		// Column exists.
		return
	}

	c.Lock()
	defer c.Unlock()

	c.columns = append(c.columns, col)
}

func (c *Columns) GetColumn(name string) (Column, bool) {
	c.RLock()
	defer c.RUnlock()

	for _, column := range c.columns {
		if strings.EqualFold(column.name, name) {
			return column, true
		}
	}

	return Column{}, false
}

func (c *Columns) GetColumns() []Column {
	if c == nil {
		return []Column{}
	}

	c.RLock()
	defer c.RUnlock()

	cols := make([]Column, len(c.columns))
	copy(cols, c.columns)
	return cols
}

func (c *Columns) Names() []string {
	var names []string
	for _, col := range c.GetColumns() {
		names = append(names, col.name)
	}
	return names
}

// SpecsByName indexes specs by their lowercased name.
func SpecsByName(specs []ColumnSpec) map[string]ColumnSpec {
	out := make(map[string]ColumnSpec, len(specs))
	for _, spec := range specs {
		out[strings.ToLower(spec.Name)] = spec
	}
	return out
}

// RequiredNames returns the names of every required spec, in order.
func RequiredNames(specs []ColumnSpec) []string {
	var names []string
	for _, spec := range specs {
		if spec.Required {
			names = append(names, spec.Name)
		}
	}
	return names
}
