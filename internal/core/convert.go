package core

// convert.go turns raw CSV cells into pgtype values for COPY.
//
// Empty cells become NULL. A non-empty cell that cannot be read as its
// declared type is an error; the loader reports it with line and column.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates a numeric string after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future fall into the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339, "2006-01-02 15:04:05",
	}
)

// ConvertCell converts one raw cell to the pgtype value for t.
// Typed cells are cleaned of spreadsheet artifacts before parsing; text
// cells are loaded verbatim, with only the empty string as NULL.
func ConvertCell(raw string, t ColumnType) (any, error) {
	switch t {
	case TypeInteger:
		return ToPgInt4(CleanCell(raw))
	case TypeNumeric:
		return ToPgNumeric(CleanCell(raw))
	case TypeDate:
		return ToPgDate(CleanCell(raw))
	default:
		if raw == "" {
			return pgtype.Text{}, nil
		}
		return pgtype.Text{String: strings.ToValidUTF8(raw, "\uFFFD"), Valid: true}, nil
	}
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// ISO dates are tried first; 2-digit years use TwoDigitYearPivot.
func ToPgDate(s string) (pgtype.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}, nil
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}, nil
		}
	}

	return pgtype.Date{}, fmt.Errorf("invalid date %q", s)
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting negatives "(12.50)".
func ToPgNumeric(s string) (pgtype.Numeric, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}, nil
	}

	clean := stripNumber(s)
	if !numericRegex.MatchString(clean) {
		return pgtype.Numeric{}, fmt.Errorf("invalid number %q", s)
	}

	var n pgtype.Numeric
	if err := n.Scan(clean); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return n, nil
}

// ToPgInt4 converts a string to pgtype.Int4.
// Integral decimals such as "25.0" are accepted; fractions and overflow are not.
func ToPgInt4(s string) (pgtype.Int4, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int4{Valid: false}, nil
	}

	clean := stripNumber(s)
	if i, err := strconv.ParseInt(clean, 10, 32); err == nil {
		return pgtype.Int4{Int32: int32(i), Valid: true}, nil
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return pgtype.Int4{}, fmt.Errorf("invalid integer %q", s)
	}
	return pgtype.Int4{Int32: int32(f), Valid: true}, nil
}

// stripNumber removes currency symbols and thousands separators.
func stripNumber(s string) string {
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}
	return s
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and invalid UTF-8.
func CleanCell(s string) string {
	s = strings.TrimSpace(strings.ToValidUTF8(s, "�"))

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}
