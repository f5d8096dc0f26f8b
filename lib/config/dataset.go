package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

// SQL Server resolves table names case-insensitively.
var stagingNameRegex = regexp.MustCompile("(?i)" + constants.StagingNamePattern)

type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
	// Nullable defaults to true.
	Nullable *bool `yaml:"nullable,omitempty"`

	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	MinDate string   `yaml:"minDate,omitempty"`
	MaxDate string   `yaml:"maxDate,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`

	TrueValues  []string `yaml:"trueValues,omitempty"`
	FalseValues []string `yaml:"falseValues,omitempty"`
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	ts, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q, expected YYYY-MM-DD: %w", value, err)
	}

	return &ts, nil
}

func (c Column) ToSpec() (columns.ColumnSpec, error) {
	kd, err := typing.ParseKind(c.Type)
	if err != nil {
		return columns.ColumnSpec{}, fmt.Errorf("column %q: %w", c.Name, err)
	}

	minDate, err := parseDate(c.MinDate)
	if err != nil {
		return columns.ColumnSpec{}, fmt.Errorf("column %q minDate: %w", c.Name, err)
	}

	maxDate, err := parseDate(c.MaxDate)
	if err != nil {
		return columns.ColumnSpec{}, fmt.Errorf("column %q maxDate: %w", c.Name, err)
	}

	spec := columns.ColumnSpec{
		Name:        strings.TrimSpace(c.Name),
		KindDetails: kd,
		Required:    !c.Optional,
		Nullable:    typing.DefaultValueFromPtr(c.Nullable, true),
		Min:         c.Min,
		Max:         c.Max,
		MinDate:     minDate,
		MaxDate:     maxDate,
		Pattern:     c.Pattern,
		TrueValues:  c.TrueValues,
		FalseValues: c.FalseValues,
	}

	if err = spec.Validate(); err != nil {
		return columns.ColumnSpec{}, err
	}

	return spec, nil
}

type Dataset struct {
	Name       string `yaml:"name"`
	Schema     string `yaml:"schema"`
	Table      string `yaml:"table"`
	DateFormat string `yaml:"dateFormat"`
	// DatasetKeyColumn scopes the full refresh: when set, a promote only replaces rows carrying the same key.
	DatasetKeyColumn string   `yaml:"datasetKeyColumn,omitempty"`
	Deduplicate      bool     `yaml:"deduplicate"`
	Columns          []Column `yaml:"columns"`
}

func (d Dataset) String() string {
	return fmt.Sprintf("name=%s, schema=%s, table=%s", d.Name, d.Schema, d.Table)
}

func (d Dataset) ColumnSpecs() ([]columns.ColumnSpec, error) {
	specs := make([]columns.ColumnSpec, 0, len(d.Columns))
	for _, col := range d.Columns {
		spec, err := col.ToSpec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (d Dataset) Format() (typing.DateFormat, error) {
	return typing.ParseDateFormat(d.DateFormat)
}

// Identifiers returns the sanitized schema and table.
func (d Dataset) Identifiers() (sql.SafeIdentifier, sql.SafeIdentifier, error) {
	schema, err := sql.Sanitize(d.Schema)
	if err != nil {
		return sql.SafeIdentifier{}, sql.SafeIdentifier{}, fmt.Errorf("dataset %q schema: %w", d.Name, err)
	}

	table, err := sql.Sanitize(d.Table)
	if err != nil {
		return sql.SafeIdentifier{}, sql.SafeIdentifier{}, fmt.Errorf("dataset %q table: %w", d.Name, err)
	}

	return schema, table, nil
}

func (d Dataset) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}

	if _, _, err := d.Identifiers(); err != nil {
		return err
	}

	if stagingNameRegex.MatchString(d.Table) {
		return fmt.Errorf("dataset %q table %q looks like a staging table and would be swept", d.Name, d.Table)
	}

	if _, err := d.Format(); err != nil {
		return fmt.Errorf("dataset %q: %w", d.Name, err)
	}

	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset %q has no columns", d.Name)
	}

	specs, err := d.ColumnSpecs()
	if err != nil {
		return fmt.Errorf("dataset %q: %w", d.Name, err)
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		key := strings.ToLower(spec.Name)
		if seen[key] {
			return fmt.Errorf("dataset %q has duplicate column %q", d.Name, spec.Name)
		}
		seen[key] = true
	}

	reserved := []string{constants.UploadedAtColumn}
	if d.DatasetKeyColumn != "" {
		if _, err = sql.Sanitize(d.DatasetKeyColumn); err != nil {
			return fmt.Errorf("dataset %q datasetKeyColumn: %w", d.Name, err)
		}
		reserved = append(reserved, strings.ToLower(d.DatasetKeyColumn))
	}

	for _, name := range reserved {
		if seen[name] {
			return fmt.Errorf("dataset %q cannot configure reserved column %q", d.Name, name)
		}
	}

	if slices.Contains(reserved[1:], constants.UploadedAtColumn) {
		return fmt.Errorf("dataset %q datasetKeyColumn cannot be %q", d.Name, constants.UploadedAtColumn)
	}

	return nil
}
