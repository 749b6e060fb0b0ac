package llm

import (
	"strings"
	"unicode/utf8"
)

// Display limits for SEO metadata.
const (
	MaxMetaTitle       = 60
	MaxMetaDescription = 160
)

// SanitizeMeta trims, unquotes and truncates metadata to display limits.
// It returns the fields it had to change.
func SanitizeMeta(m Meta) (Meta, []string) {
	var changed []string
	clean := func(field, v string, limit int) string {
		s := strings.Join(strings.Fields(v), " ")
		s = strings.Trim(s, `"'`)
		if utf8.RuneCountInString(s) > limit {
			s = TruncateAtWord(s, limit)
		}
		if s != v {
			changed = append(changed, field)
		}
		return s
	}
	m.MetaTitle = clean("meta_title", m.MetaTitle, MaxMetaTitle)
	m.MetaDescription = clean("meta_description", m.MetaDescription, MaxMetaDescription)
	return m, changed
}

// TruncateAtWord shortens s to at most limit runes, cutting at the last space when possible.
func TruncateAtWord(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := string(r[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-")
}
