// Package sink persists tabular query results as CSV files.
package sink

import (
	"context"
	"database/sql/driver"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrInvalidName is returned for sink names that are empty or contain a path.
var ErrInvalidName = errors.New("invalid sink name")

// Table is a materialized READ result.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Sink stores a named table and returns where it went.
type Sink interface {
	Write(ctx context.Context, name string, t Table) (string, error)
}

// CSVSink writes <Dir>/<name>.csv, replacing any previous file of that name.
type CSVSink struct {
	Dir string
}

// NewCSVSink creates a sink rooted at dir. The directory is created on first write.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

// Write renders t with a header row. The file appears atomically: readers
// see the old content or the new, never a partial file.
func (s *CSVSink) Write(ctx context.Context, name string, t Table) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	// Removes the temp file on failure; a no-op after the rename.
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, t); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	dest := filepath.Join(s.Dir, name+".csv")
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("replace %s: %w", dest, err)
	}
	return dest, nil
}

func writeCSV(f *os.File, t Table) error {
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values, header has %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			record[j] = FormatValue(v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	return w.Error()
}

// FormatValue renders one result value as CSV text. NULL is the empty
// string; dates at midnight UTC print without a time part.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Location() == time.UTC && x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	case driver.Valuer:
		// pgtype.Numeric, pgtype.Interval and friends.
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return FormatValue(dv)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
