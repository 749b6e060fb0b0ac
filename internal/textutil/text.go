// Package textutil holds the text measurements shared by the scorer and the enhancer.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	reHeading   = regexp.MustCompile(`^(#{1,6}\s+\S|[A-Z][^.!?]{0,80}:$)`)
	reListItem  = regexp.MustCompile(`^(\s*[-*+]\s+\S|\s*\d+[.)]\s+\S)`)
	reTableRow  = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	reSentence  = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*|[^.!?]+$`)
	reNumber    = regexp.MustCompile(`\b\d+(?:[.,]\d+)*%?`)
	reCitation  = regexp.MustCompile(`\[\d+\]|\(\s*source:[^)]*\)|https?://\S+`)
	reCodeFence = regexp.MustCompile("^\\s*```")
)

// Words splits text into word tokens: letters and digits, keeping inner apostrophes and hyphens.
func Words(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, strings.Trim(b.String(), "'-"))
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case (r == '\'' || r == '’' || r == '-') && b.Len() > 0:
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	filtered := out[:0]
	for _, w := range out {
		if w != "" {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// WordCount counts word tokens.
func WordCount(text string) int {
	return len(Words(text))
}

// Paragraphs splits on blank lines and trims each block.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if p := strings.TrimSpace(block); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsHeading reports whether a line is a markdown heading or a short "Title:" line.
func IsHeading(line string) bool {
	return reHeading.MatchString(strings.TrimSpace(line))
}

// IsListItem reports whether a line is a bullet or numbered list item.
func IsListItem(line string) bool {
	return reListItem.MatchString(line)
}

// IsTableRow reports whether a line is a markdown table row.
func IsTableRow(line string) bool {
	return reTableRow.MatchString(line)
}

// IsCodeFence reports whether a line opens or closes a fenced code block.
func IsCodeFence(line string) bool {
	return reCodeFence.MatchString(line)
}

// Headings returns the heading lines of text, without markdown markers.
func Headings(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if IsHeading(line) {
			out = append(out, strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#")))
		}
	}
	return out
}

// HasListOrTable reports whether text contains a list item or a table row.
func HasListOrTable(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if IsListItem(line) || IsTableRow(line) {
			return true
		}
	}
	return false
}

// ProseLines drops headings, list items, table rows and fenced code from text.
func ProseLines(text string) []string {
	var out []string
	inCode := false
	for _, line := range strings.Split(text, "\n") {
		if IsCodeFence(line) {
			inCode = !inCode
			continue
		}
		if inCode || IsHeading(line) || IsTableRow(line) {
			continue
		}
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Sentences splits prose (headings and code removed) into sentences.
func Sentences(text string) []string {
	var out []string
	for _, line := range ProseLines(text) {
		line = strings.TrimSpace(reListItem.ReplaceAllStringFunc(line, func(m string) string {
			return m[len(m)-1:]
		}))
		for _, s := range reSentence.FindAllString(line, -1) {
			if s = strings.TrimSpace(s); s != "" && len(Words(s)) > 0 {
				out = append(out, s)
			}
		}
	}
	return out
}

// Syllables estimates the syllable count of a word with a vowel-group heuristic.
func Syllables(word string) int {
	w := strings.ToLower(word)
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// FleschReadingEase computes 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words),
// clamped to [0,100]. Text without words scores 0.
func FleschReadingEase(text string) float64 {
	sentences := Sentences(text)
	var words []string
	for _, s := range sentences {
		words = append(words, Words(s)...)
	}
	if len(words) == 0 || len(sentences) == 0 {
		return 0
	}
	syl := 0
	for _, w := range words {
		syl += Syllables(w)
	}
	score := 206.835 -
		1.015*(float64(len(words))/float64(len(sentences))) -
		84.6*(float64(syl)/float64(len(words)))
	return Clamp(score, 0, 100)
}

var phraseCache sync.Map // phrase -> *regexp.Regexp

// phraseRegexp matches phrase case-insensitively as whole words: a phrase that
// starts or ends with a letter or digit must not continue a longer word there.
func phraseRegexp(phrase string) *regexp.Regexp {
	if re, ok := phraseCache.Load(phrase); ok {
		return re.(*regexp.Regexp)
	}
	fields := strings.Fields(phrase)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	expr := `(` + strings.Join(fields, `\s+`) + `)`
	trimmed := strings.TrimSpace(phrase)
	first, _ := utf8.DecodeRuneInString(trimmed)
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if isWordRune(first) {
		expr = `(?:^|[^\p{L}\p{N}'’-])` + expr
	}
	if isWordRune(last) {
		expr += `(?:$|[^\p{L}\p{N}'’-])`
	}
	re, _ := phraseCache.LoadOrStore(phrase, regexp.MustCompile(`(?i)`+expr))
	return re.(*regexp.Regexp)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CountPhrases counts case-insensitive whole-word occurrences of each phrase in
// text, so "try" is not found inside "industry".
func CountPhrases(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n += countMatches(phraseRegexp(p), text)
	}
	return n
}

// countMatches counts matches of re. Scanning resumes right after the phrase
// itself, so a separator that closed one match can open the next.
func countMatches(re *regexp.Regexp, text string) int {
	n := 0
	for rest := text; ; n++ {
		loc := re.FindStringSubmatchIndex(rest)
		if loc == nil {
			return n
		}
		rest = rest[loc[3]:]
	}
}

// CountTokenSequence counts non-overlapping runs of seq in words, comparing
// case-insensitively.
func CountTokenSequence(words, seq []string) int {
	if len(seq) == 0 || len(seq) > len(words) {
		return 0
	}
	n := 0
	for i := 0; i+len(seq) <= len(words); {
		match := true
		for j, s := range seq {
			if !strings.EqualFold(words[i+j], s) {
				match = false
				break
			}
		}
		if match {
			n++
			i += len(seq)
			continue
		}
		i++
	}
	return n
}

// ContainsWords reports whether text contains phrase as a whole-word sequence.
func ContainsWords(text, phrase string) bool {
	return CountTokenSequence(Words(text), Words(phrase)) > 0
}

// CountQuestions counts sentences ending in a question mark.
func CountQuestions(text string) int {
	n := 0
	for _, s := range Sentences(text) {
		if strings.HasSuffix(strings.TrimRight(s, `"')]`), "?") {
			n++
		}
	}
	return n
}

// CountNumbers counts numeric tokens such as 42, 3.5 or 20%.
func CountNumbers(text string) int {
	return len(reNumber.FindAllString(text, -1))
}

// CountCitations counts [n] markers, "(source: ...)" notes and bare URLs.
func CountCitations(text string) int {
	return len(reCitation.FindAllString(text, -1))
}

// Clamp bounds v to [lo, hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Normalize lowercases s, trims it and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
