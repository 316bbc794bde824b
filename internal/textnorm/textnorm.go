// Package textnorm holds the string normalization rules shared by the store
// and the catalog: punctuation spacing, user name folding, accent-insensitive
// search keys and locale-aware sorting.
package textnorm

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TimestampLayout renders record timestamps as DD/MM/YYYY HH:mm:ss.
const TimestampLayout = "02/01/2006 15:04:05"

var (
	punctuation       = regexp.MustCompile(`[.,:-]`)
	whitespace        = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s[.,:-]`)
	anyWhitespaceRune = regexp.MustCompile(`\s`)
)

// String collapses runs of whitespace and puts exactly one space after
// '.', ',', ':' and '-' (and none before them).
func String(s string) string {
	s = punctuation.ReplaceAllString(s, "$0 ")
	s = whitespace.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllStringFunc(s, strings.TrimSpace)
	return strings.TrimSpace(s)
}

// UserName removes every whitespace rune and diacritic and lower-cases the result.
func UserName(s string) string {
	return strings.ToLower(stripDiacritics(anyWhitespaceRune.ReplaceAllString(s, "")))
}

// Fold produces the search key stored next to searchable columns: normalized,
// without diacritics, lower case.
func Fold(s string) string {
	return strings.ToLower(stripDiacritics(String(s)))
}

// List splits comma separated entries, so "A, B" and ["A", "B"] yield the same
// values. Empty entries are dropped.
func List(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Dedupe keeps the first occurrence of every value, preserving order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Timestamp formats t in the catalog's display layout.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// Sorter orders strings ignoring case and accents. A Sorter is not safe for
// concurrent use; build one per call site.
type Sorter struct {
	c *collate.Collator
}

// NewSorter returns a Sorter for Spanish collation rules.
func NewSorter() *Sorter {
	return &Sorter{c: collate.New(language.Spanish, collate.IgnoreCase, collate.IgnoreDiacritics)}
}

// Less reports whether a sorts before b.
func (s *Sorter) Less(a, b string) bool {
	return s.c.CompareString(a, b) < 0
}

// EscapeLike escapes LIKE wildcards so user input only matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
