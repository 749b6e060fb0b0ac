// Package interlink ranks existing content items as internal-link targets for a keyword.
//
// Ranking is a pure function of (keyword, corpus, now, maxResults): the same
// inputs always produce the same ordered output.
package interlink

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

const (
	DefaultMaxResults = 10
	// MinRelevance is the floor below which a candidate is dropped.
	MinRelevance = 0.4
	// MinOverlap is the smallest word-overlap ratio that counts as a match.
	MinOverlap = 0.3

	baseExact   = 1.0
	baseTitle   = 0.8
	basePartial = 0.7
	baseOverlap = 0.6

	boostRecent30   = 1.1
	boostRecent90   = 1.05
	boostTitle      = 1.2
	boostPerKeyword = 0.1

	day = 24 * time.Hour
)

type scored struct {
	item  entity.ContentItem
	opp   entity.InterlinkOpportunity
	score float64
}

// FindOpportunities scores every corpus item against keyword and returns at most
// maxResults opportunities (DefaultMaxResults when maxResults <= 0), sorted by
// score, then most recent publication, then id. The result is never nil.
func FindOpportunities(keyword string, corpus []entity.ContentItem, now time.Time, maxResults int) []entity.InterlinkOpportunity {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	kw := textutil.Normalize(keyword)
	out := []entity.InterlinkOpportunity{}
	if kw == "" {
		return out
	}
	kwTokens := tokenSet(kw)

	var hits []scored
	for _, item := range corpus {
		if s, ok := scoreItem(kw, kwTokens, keyword, item, now); ok && s.score >= MinRelevance {
			hits = append(hits, s)
		}
	}

	slices.SortFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := comparePublished(a.item.PublishedAt, b.item.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.item.ID, b.item.ID)
	})

	for i := range min(len(hits), maxResults) {
		out = append(out, hits[i].opp)
	}
	return out
}

func scoreItem(kw string, kwTokens map[string]struct{}, rawKeyword string, item entity.ContentItem, now time.Time) (scored, bool) {
	title := textutil.Normalize(item.Title)
	inTitle := strings.Contains(title, kw)

	var (
		exact, partial bool
		bestOverlap    float64
		matched        []string
	)
	for _, raw := range item.Keywords {
		ik := textutil.Normalize(raw)
		if ik == "" {
			continue
		}
		isExact := ik == kw
		isPartial := !isExact && (strings.Contains(ik, kw) || strings.Contains(kw, ik))
		ov := jaccard(kwTokens, tokenSet(ik))
		exact = exact || isExact
		partial = partial || isPartial
		bestOverlap = math.Max(bestOverlap, ov)
		if isExact || isPartial || ov >= MinOverlap {
			matched = append(matched, strings.TrimSpace(raw))
		}
	}

	var (
		base  float64
		match constants.MatchType
	)
	switch {
	case exact:
		base, match = baseExact, constants.MatchExact
	case inTitle:
		base, match = baseTitle, constants.MatchTitle
	case partial:
		base, match = basePartial, constants.MatchPartial
	case bestOverlap >= MinOverlap:
		base, match = baseOverlap*bestOverlap, constants.MatchOverlap
	default:
		return scored{}, false
	}

	score := base * recencyBoost(item.PublishedAt, now)
	if inTitle {
		score *= boostTitle
	}
	if extra := len(matched) - 1; extra > 0 {
		score *= 1 + boostPerKeyword*float64(extra)
	}
	score = textutil.Round(textutil.Clamp(score, 0, 1), 4)

	return scored{
		item:  item,
		score: score,
		opp: entity.InterlinkOpportunity{
			ContentID:       item.ID,
			TargetURL:       item.URL,
			TargetTitle:     item.Title,
			AnchorText:      anchorText(rawKeyword, kw, item.Title, inTitle, matched),
			RelevanceScore:  score,
			MatchType:       match,
			MatchedKeywords: matched,
		},
	}, true
}

func recencyBoost(published *time.Time, now time.Time) float64 {
	if published == nil {
		return 1
	}
	age := max(now.Sub(*published), 0)
	switch {
	case age <= 30*day:
		return boostRecent30
	case age <= 90*day:
		return boostRecent90
	default:
		return 1
	}
}

// comparePublished orders more recent first; undated items sort last.
func comparePublished(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range textutil.Words(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// anchorText prefers the title span holding the keyword, then the first matched
// item keyword, then the keyword in title case.
func anchorText(rawKeyword, kw, title string, inTitle bool, matched []string) string {
	if inTitle {
		if span := titleSpan(title, kw); span != "" {
			return span
		}
	}
	if len(matched) > 0 {
		return matched[0]
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(rawKeyword), " "))
}

// titleSpan finds kw in title (case and spacing insensitive) and widens the match
// to whole words.
func titleSpan(title, kw string) string {
	parts := strings.Fields(kw)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(parts, `\s+`))
	if err != nil {
		return ""
	}
	loc := re.FindStringIndex(title)
	if loc == nil {
		return ""
	}
	start, end := loc[0], loc[1]
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(title[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}
	for end < len(title) {
		r, size := utf8.DecodeRuneInString(title[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return strings.TrimSpace(title[start:end])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}
