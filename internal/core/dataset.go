package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/salespipe/internal/logging"
)

// Dataset is an in-memory table read from a CSV file: one header row and
// zero or more data rows. Rows may be shorter than the header; missing
// trailing cells read as empty.
type Dataset struct {
	Columns []string
	Rows    [][]string
	Source  string // base name of the file it was read from
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Cell returns row i, column j, or "" when the row is short.
func (d *Dataset) Cell(i, j int) string {
	row := d.Rows[i]
	if j >= len(row) {
		return ""
	}
	return row[j]
}

// HasColumn reports whether a header normalizes to name.
func (d *Dataset) HasColumn(name string) bool {
	want := NormalizeColumnName(name)
	for _, c := range d.Columns {
		if NormalizeColumnName(c) == want {
			return true
		}
	}
	return false
}

// WithConstantColumn returns a copy with one extra column holding value in
// every row. The receiver is not modified.
func (d *Dataset) WithConstantColumn(name, value string) *Dataset {
	cols := make([]string, len(d.Columns), len(d.Columns)+1)
	copy(cols, d.Columns)
	cols = append(cols, name)

	rows := make([][]string, len(d.Rows))
	for i, r := range d.Rows {
		row := make([]string, len(d.Columns)+1)
		copy(row, r)
		row[len(d.Columns)] = value
		rows[i] = row
	}

	return &Dataset{Columns: cols, Rows: rows, Source: d.Source}
}

// ReadDataset reads a headed CSV file.
func ReadDataset(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	src, counter := WrapForStreaming(f)
	ds, err := ParseDataset(src)
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", filepath.Base(path), err)
	}
	ds.Source = filepath.Base(path)

	logging.FromContext(ctx).Info("dataset read",
		"file", ds.Source,
		"rows", ds.Len(),
		"columns", len(ds.Columns),
		"bytes", counter.BytesRead(),
	)
	return ds, nil
}

// ParseDataset reads CSV from r. The first record is the header.
func ParseDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: no header row")
	}
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Columns: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(record), len(header))
		}
		ds.Rows = append(ds.Rows, record)
	}

	return ds, nil
}
