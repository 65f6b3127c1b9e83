package core

// validation.go checks a dataset against a table definition without a
// database.
//
// The loader and the dry-run validator share convertRow, so a dataset that
// validates cleanly converts cleanly during COPY. The loader stops at the
// first rejected cell; ValidateDataset collects them up to a limit.

import (
	"encoding/json"
	"fmt"
)

// CellError is a single rejected cell. Line counts the header as line 1.
type CellError struct {
	Line   int    `json:"line"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Err    error  `json:"-"`
}

// MarshalJSON includes the conversion error's message.
func (e CellError) MarshalJSON() ([]byte, error) {
	type plain CellError
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		plain
		Message string `json:"message"`
	}{plain(e), msg})
}

func (e *CellError) Error() string {
	return fmt.Sprintf("line %d column %s: %v", e.Line, e.Column, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// convertRow converts the projected cells of row i into dst.
func convertRow(ds *Dataset, proj Projection, i int, dst []any) *CellError {
	for j, col := range proj {
		raw := ds.Cell(i, col.Index)
		v, err := ConvertCell(raw, col.Type)
		if err != nil {
			return &CellError{Line: i + 2, Column: col.Name, Value: raw, Err: err}
		}
		dst[j] = v
	}
	return nil
}

// ValidationReport is the outcome of a dry run.
type ValidationReport struct {
	Rows      int         `json:"rows"`
	Columns   []string    `json:"columns"` // projected, in load order
	Dropped   []string    `json:"dropped"` // dataset headers outside the definition
	Errors    []CellError `json:"errors"`
	Truncated bool        `json:"truncated"` // more errors than the limit
}

// Valid reports whether every cell converted.
func (r ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateDataset converts every projected cell the loader would send and
// collects rejected cells, at most maxErrors of them (0 means no limit).
// A dataset that cannot be projected at all returns the SchemaConflict error.
func ValidateDataset(ds *Dataset, def TableDefinition, maxErrors int) (ValidationReport, error) {
	proj, err := Project(ds.Columns, def)
	if err != nil {
		return ValidationReport{}, err
	}

	report := ValidationReport{Rows: ds.Len(), Columns: proj.Names(), Errors: []CellError{}}

	kept := make(map[int]bool, len(proj))
	for _, col := range proj {
		kept[col.Index] = true
	}
	for i, h := range ds.Columns {
		if !kept[i] {
			report.Dropped = append(report.Dropped, h)
		}
	}

	for i := range ds.Len() {
		// Every column of the row, not just the first failure.
		for _, col := range proj {
			raw := ds.Cell(i, col.Index)
			if _, err := ConvertCell(raw, col.Type); err != nil {
				if maxErrors > 0 && len(report.Errors) >= maxErrors {
					report.Truncated = true
					return report, nil
				}
				report.Errors = append(report.Errors, CellError{Line: i + 2, Column: col.Name, Value: raw, Err: err})
			}
		}
	}
	return report, nil
}
