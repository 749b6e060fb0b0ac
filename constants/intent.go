package constants

import "strings"

// SearchIntent classifies what a searcher wants from a keyword.
type SearchIntent string

const (
	IntentInformational SearchIntent = "informational"
	IntentCommercial    SearchIntent = "commercial"
	IntentTransactional SearchIntent = "transactional"
	IntentNavigational  SearchIntent = "navigational"
)

func ParseSearchIntent(input string) (SearchIntent, bool) {
	switch SearchIntent(strings.ToLower(strings.TrimSpace(input))) {
	case IntentInformational:
		return IntentInformational, true
	case IntentCommercial:
		return IntentCommercial, true
	case IntentTransactional:
		return IntentTransactional, true
	case IntentNavigational:
		return IntentNavigational, true
	}
	return IntentInformational, false
}

// LengthMultiplier scales a preset word count for the intent.
func (i SearchIntent) LengthMultiplier() float64 {
	switch i {
	case IntentInformational:
		return 1.2
	case IntentTransactional:
		return 0.7
	case IntentNavigational:
		return 0.5
	default:
		return 1.0
	}
}

// MatchType is how an interlink candidate matched the query keyword.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchTitle   MatchType = "title"
	MatchPartial MatchType = "partial"
	MatchOverlap MatchType = "overlap"
)

// MergeStrategy selects how consensus candidates are combined.
type MergeStrategy string

const (
	MergeLongest   MergeStrategy = "longest"
	MergeSummarize MergeStrategy = "summarize"
)

func ParseMergeStrategy(input string) (MergeStrategy, bool) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(input))) {
	case "", MergeLongest:
		return MergeLongest, true
	case MergeSummarize:
		return MergeSummarize, true
	}
	return MergeLongest, false
}
