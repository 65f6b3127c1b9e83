package sqlbatch

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title derives a display label from a file name:
//
//	"25_bi_category_performance_by_gender.sql" -> "Category Performance By Gender"
//
// Numeric ordering tokens and the bi/view markers are dropped. A name with
// nothing left falls back to its stem.
func Title(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	var words []string
	for _, tok := range strings.Split(stem, "_") {
		if tok == "" || isDigits(tok) {
			continue
		}
		switch strings.ToLower(tok) {
		case "bi", "view":
			continue
		}
		words = append(words, tok)
	}

	if len(words) == 0 {
		return stem
	}
	return titleCase(strings.Join(words, " "))
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "top10products" becomes "Top10Products".
func titleCase(s string) string {
	caser := cases.Title(language.English)

	var b strings.Builder
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
