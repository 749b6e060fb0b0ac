// Package quality scores finished article text along fixed dimensions.
//
// Every dimension is a pure function of the text (and the optional primary
// keyword) and lies in [0,100]. Overall is the weighted sum below.
package quality

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

// Weights of each dimension in the overall score. They sum to 1.
var Weights = map[string]float64{
	entity.DimReadability:   0.15,
	entity.DimSEO:           0.15,
	entity.DimStructure:     0.15,
	entity.DimFactual:       0.15,
	entity.DimUniqueness:    0.10,
	entity.DimEngagement:    0.10,
	entity.DimEEAT:          0.10,
	entity.DimAccessibility: 0.10,
}

// Target densities shared with the enhancer.
const (
	WordsPerQuestion    = 500
	WordsPerExample     = 200
	WordsPerCTA         = 1000
	ExperiencePer1000   = 3
	wordsPerHeading     = 300
	idealParagraphWords = 120
	idealSentenceWords  = 20
	maxSentenceWords    = 35
	mattrWindow         = 50
	densityLowPct       = 0.5
	densityHighPct      = 2.5
	targetCitations     = 3
)

// ExampleMarkers signal a concrete example.
var ExampleMarkers = []string{"for example", "for instance", "e.g.", "such as", "consider", "imagine"}

// CTAMarkers signal a call to action.
var CTAMarkers = []string{"try", "start by", "get started", "sign up", "download", "learn more", "contact us", "subscribe", "let us know", "take the next step"}

// ExperienceMarkers are first-person credibility phrases.
var ExperienceMarkers = []string{
	"in my experience", "i've found", "i have found", "we've found", "we have found",
	"in our experience", "i've seen", "we've seen", "when i tested", "when we tested",
	"from our testing", "i recommend", "we recommend", "in practice,",
}

// Options carries the context the scorer may use.
type Options struct {
	// Keyword is the primary keyword; empty scores SEO at a neutral 50.
	Keyword string
}

// Score computes the quality score of text. Empty text scores 0 on every dimension.
func Score(text string, opts Options) entity.QualityScore {
	dims := make(map[string]float64, len(entity.QualityDimensions))
	words := textutil.Words(text)
	if len(words) == 0 {
		for _, d := range entity.QualityDimensions {
			dims[d] = 0
		}
		return entity.QualityScore{Overall: 0, Dimensions: dims}
	}

	sentences := textutil.Sentences(text)
	dims[entity.DimReadability] = textutil.FleschReadingEase(text)
	dims[entity.DimSEO] = seoScore(text, words, opts.Keyword)
	dims[entity.DimStructure] = structureScore(text, len(words))
	dims[entity.DimFactual] = factualScore(text)
	dims[entity.DimUniqueness] = uniquenessScore(words, sentences)
	dims[entity.DimEngagement] = engagementScore(text, len(words))
	dims[entity.DimEEAT] = eeatScore(text, len(words))
	dims[entity.DimAccessibility] = accessibilityScore(sentences)

	overall := 0.0
	for _, d := range entity.QualityDimensions {
		v := textutil.Round(textutil.Clamp(dims[d], 0, 100), 2)
		dims[d] = v
		overall += Weights[d] * v
	}
	return entity.QualityScore{
		Overall:    textutil.Round(textutil.Clamp(overall, 0, 100), 2),
		Dimensions: dims,
	}
}

// KeywordDensity returns the share of words, per 100, taken by whole-word
// occurrences of keyword in text.
func KeywordDensity(text string, wordCount int, keyword string) float64 {
	kw := textutil.Words(keyword)
	if len(kw) == 0 || wordCount == 0 {
		return 0
	}
	n := textutil.CountTokenSequence(textutil.Words(text), kw)
	return float64(n*len(kw)) / float64(wordCount) * 100
}

func seoScore(text string, words []string, keyword string) float64 {
	if strings.TrimSpace(keyword) == "" {
		return 50
	}
	d := KeywordDensity(text, len(words), keyword)
	var density float64
	switch {
	case d >= densityLowPct && d <= densityHighPct:
		density = 100
	case d < densityLowPct:
		density = d / densityLowPct * 100
	default:
		density = 100 - (d-densityHighPct)*40
	}
	density = textutil.Clamp(density, 0, 100)

	heading := 0.0
	for _, h := range textutil.Headings(text) {
		if textutil.ContainsWords(h, keyword) {
			heading = 100
			break
		}
	}
	return 0.7*density + 0.3*heading
}

func structureScore(text string, wordCount int) float64 {
	headings := len(textutil.Headings(text))
	wantHeadings := math.Max(1, float64(wordCount)/wordsPerHeading)
	headingPart := 50 * math.Min(1, float64(headings)/wantHeadings)

	var prose []int
	for _, p := range textutil.Paragraphs(text) {
		if textutil.IsHeading(p) {
			continue
		}
		if n := textutil.WordCount(p); n > 0 {
			prose = append(prose, n)
		}
	}
	paragraphPart := 0.0
	if len(prose) > 0 {
		total := 0
		for _, n := range prose {
			total += n
		}
		avg := float64(total) / float64(len(prose))
		paragraphPart = 30 * math.Min(1, idealParagraphWords/avg)
	}

	listPart := 0.0
	if textutil.HasListOrTable(text) {
		listPart = 20
	}
	return headingPart + paragraphPart + listPart
}

func factualScore(text string) float64 {
	citations := textutil.CountCitations(text)
	numbers := min(textutil.CountNumbers(text), 10)
	return 40 + 12*float64(citations) + 3*float64(numbers)
}

// uniquenessScore uses the moving-average type/token ratio over a fixed window,
// mapped from [0.4,0.8] onto [0,100], minus 10 per repeated sentence.
func uniquenessScore(words []string, sentences []string) float64 {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	ratio := mattr(lower, mattrWindow)
	base := (ratio - 0.4) / 0.4 * 100

	seen := make(map[string]struct{}, len(sentences))
	dups := 0
	for _, s := range sentences {
		key := textutil.Normalize(s)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return textutil.Clamp(base, 0, 100) - 10*float64(dups)
}

func mattr(words []string, window int) float64 {
	if len(words) == 0 {
		return 0
	}
	if len(words) <= window {
		return typeTokenRatio(words)
	}
	sum := 0.0
	n := 0
	for i := 0; i+window <= len(words); i++ {
		sum += typeTokenRatio(words[i : i+window])
		n++
	}
	return sum / float64(n)
}

func typeTokenRatio(words []string) float64 {
	types := make(map[string]struct{}, len(words))
	for _, w := range words {
		types[w] = struct{}{}
	}
	return float64(len(types)) / float64(len(words))
}

// EngagementTargets returns the wanted number of questions, examples and calls to action.
func EngagementTargets(wordCount int) (questions, examples, ctas int) {
	questions = max(1, int(math.Round(float64(wordCount)/WordsPerQuestion)))
	examples = max(1, int(math.Round(float64(wordCount)/WordsPerExample)))
	ctas = max(1, int(math.Round(float64(wordCount)/WordsPerCTA)))
	return
}

// ExperienceTarget returns the wanted number of experience phrases.
func ExperienceTarget(wordCount int) int {
	return max(1, int(math.Round(float64(wordCount)*ExperiencePer1000/1000)))
}

func engagementScore(text string, wordCount int) float64 {
	tq, te, tc := EngagementTargets(wordCount)
	q := textutil.CountQuestions(text)
	e := textutil.CountPhrases(text, ExampleMarkers)
	c := textutil.CountPhrases(text, CTAMarkers)
	ratio := func(got, want int) float64 {
		return math.Min(1, float64(got)/float64(want))
	}
	return (ratio(q, tq) + ratio(e, te) + ratio(c, tc)) / 3 * 100
}

func eeatScore(text string, wordCount int) float64 {
	exp := textutil.CountPhrases(text, ExperienceMarkers)
	perThousand := float64(exp) / float64(wordCount) * 1000
	cites := textutil.CountCitations(text)
	return 70*math.Min(1, perThousand/ExperiencePer1000) + 30*math.Min(1, float64(cites)/targetCitations)
}

func accessibilityScore(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	short := 0
	for _, s := range sentences {
		n := textutil.WordCount(s)
		total += n
		if n <= maxSentenceWords {
			short++
		}
	}
	avg := float64(total) / float64(len(sentences))
	lengthPart := 100 - math.Max(0, avg-idealSentenceWords)*4
	lengthPart = textutil.Clamp(lengthPart, 0, 100)
	share := float64(short) / float64(len(sentences)) * 100
	return 0.6*lengthPart + 0.4*share
}
