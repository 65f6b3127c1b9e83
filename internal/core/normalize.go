package core

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeColumnName maps a source header onto the canonical column form:
// trimmed, lower-cased, every run of whitespace or punctuation collapsed to
// a single underscore, no leading or trailing underscore.
//
//	" Price per Unit " -> "price_per_unit"
//	"Customer-ID"      -> "customer_id"
func NormalizeColumnName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		// Separator or punctuation; the BOM and other format runes vanish.
		if unicode.Is(unicode.Cf, r) {
			continue
		}
		pendingSep = true
	}

	return b.String()
}

// Project intersects dataset headers with the definition, keeping the
// dataset's column order. Headers are normalized first; when two headers
// normalize to the same name the first one wins.
func Project(headers []string, def TableDefinition) (Projection, error) {
	proj := make(Projection, 0, len(def.Columns))
	seen := make(map[string]bool, len(headers))

	for i, h := range headers {
		name := NormalizeColumnName(h)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		col, ok := def.Lookup(name)
		if !ok {
			continue
		}
		proj = append(proj, ProjectedColumn{Name: col.Name, Type: col.Type, Index: i})
	}

	if len(proj) == 0 {
		return nil, NewError(KindSchemaConflict, "project",
			fmt.Errorf("no dataset column matches table %s (headers: %v)", def.Key, headers))
	}
	return proj, nil
}
