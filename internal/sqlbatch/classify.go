// Package sqlbatch discovers BI query files, classifies each as READ or
// WRITE, and executes them in order with per-file isolation.
package sqlbatch

import (
	"strings"
	"unicode"
)

// Kind is the execution class of a SQL file.
type Kind int

const (
	// KindWrite files run for their side effects with autocommit.
	KindWrite Kind = iota
	// KindRead files return a result set that is written to the sink.
	KindRead
)

func (k Kind) String() string {
	if k == KindRead {
		return "READ"
	}
	return "WRITE"
}

// MarshalText renders the kind for JSON and logs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classification is the kind plus the leading keyword it was derived from.
// Keyword is empty when the text holds no statement.
type Classification struct {
	Kind    Kind
	Keyword string
}

// Empty reports whether no statement was found.
func (c Classification) Empty() bool {
	return c.Keyword == ""
}

// Classify inspects the first effective token of text. Blank lines, "--"
// line comments and "/* */" block comments are skipped, as are opening
// parentheses. SELECT and WITH are reads; everything else is a write.
func Classify(text string) Classification {
	keyword := strings.ToUpper(leadingKeyword(firstStatement(text)))

	switch keyword {
	case "SELECT", "WITH":
		return Classification{Kind: KindRead, Keyword: keyword}
	}
	return Classification{Kind: KindWrite, Keyword: keyword}
}

// firstStatement returns text from the first character that is neither
// whitespace, comment nor an opening parenthesis, or "".
func firstStatement(text string) string {
	s := text
	inBlock := false

	for len(s) > 0 {
		if inBlock {
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = s[end+2:]
			inBlock = false
			continue
		}

		s = strings.TrimLeftFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || r == '(' || r == '\uFEFF'
		})

		switch {
		case strings.HasPrefix(s, "--"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			s = s[2:]
			inBlock = true
		default:
			return s
		}
	}
	return ""
}

// leadingKeyword returns the leading run of letters and underscores.
func leadingKeyword(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || r == '_')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
