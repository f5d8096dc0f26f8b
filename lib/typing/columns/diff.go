package columns

import (
	"strings"
)

// Conflict is an existing column whose stored type cannot hold the requested one.
type Conflict struct {
	Column    string
	Existing  Column
	Requested Column
}

type DiffResults struct {
	// TargetColumnsMissing are requested columns that need to be added to the target.
	TargetColumnsMissing []Column
	// SourceColumnsMissing are target columns that nothing requested. They are never dropped.
	SourceColumnsMissing []Column
	Conflicts            []Conflict
}

// Diff compares the requested columns against the columns that already exist in the target.
// Names are compared case-insensitively since that is how SQL Server resolves them by default.
func Diff(requested, existing []Column) DiffResults {
	existingMap := buildColumnsMap(existing)
	requestedMap := buildColumnsMap(requested)

	var results DiffResults
	for _, col := range requested {
		existingCol, isOk := existingMap[strings.ToLower(col.name)]
		if !isOk {
			results.TargetColumnsMissing = append(results.TargetColumnsMissing, col)
			continue
		}

		if !existingCol.KindDetails.Covers(col.KindDetails) {
			results.Conflicts = append(results.Conflicts, Conflict{
				Column:    col.name,
				Existing:  existingCol,
				Requested: col,
			})
		}
	}

	for _, col := range existing {
		if _, isOk := requestedMap[strings.ToLower(col.name)]; !isOk {
			results.SourceColumnsMissing = append(results.SourceColumnsMissing, col)
		}
	}

	return results
}

func buildColumnsMap(cols []Column) map[string]Column {
	retMap := make(map[string]Column, len(cols))
	for _, col := range cols {
		retMap[strings.ToLower(col.name)] = col
	}

	return retMap
}
