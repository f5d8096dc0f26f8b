package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type CSVOptions struct {
	// Comma defaults to ','.
	Comma rune
	// NormalizeHeaders turns headers like "Order Date" into order_date so they pass identifier sanitization.
	NormalizeHeaders bool
	// KeepEmptyStrings stores empty cells as "" instead of NULL.
	KeepEmptyStrings bool
}

func ReadCSVFile(path string, opts CSVOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer file.Close()

	frame, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return frame, nil
}

// ReadCSV reads a CSV with a header row. A UTF-8 or UTF-16 byte order mark is honoured and stripped.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	reader := csv.NewReader(transform.NewReader(r, xunicode.BOMOverride(xunicode.UTF8.NewDecoder())))
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("file is empty")
	} else if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if opts.NormalizeHeaders {
			name = NormalizeColumnName(name)
		}
		columns[i] = name
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			// Ragged rows are rejected here since FieldsPerRecord is pinned to the header width.
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		row := make([]any, len(record))
		for i, value := range record {
			if value == "" && !opts.KeepEmptyStrings {
				continue
			}
			row[i] = value
		}
		rows = append(rows, row)
	}

	return NewFrame(columns, rows)
}

// NormalizeColumnName lowercases, strips accents and collapses everything that is not [a-z0-9] into single underscores.
// Names that would start with a digit are prefixed with an underscore.
func NormalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	// Chains carry state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, name); err == nil {
		name = stripped
	}

	var sb strings.Builder
	prevUnderscore := false
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				prevUnderscore = true
			}
		}
	}

	out := strings.TrimSuffix(sb.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
