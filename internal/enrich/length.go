package enrich

import (
	"context"
	"math"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// Word count bounds of a length recommendation.
const (
	MinTargetWords = 300
	MaxTargetWords = 5000
)

// LengthOptimizer recommends a target word count for a request.
type LengthOptimizer interface {
	TargetWords(ctx context.Context, req entity.GenerationRequest, intent constants.SearchIntent) Result[int]
}

// PresetOptimizer scales the request's length preset by the search intent and
// rounds to the nearest 50 words.
type PresetOptimizer struct{}

func (PresetOptimizer) TargetWords(_ context.Context, req entity.GenerationRequest, intent constants.SearchIntent) Result[int] {
	base := req.Length.Words()
	if intent == "" {
		intent = constants.IntentInformational
	}
	words := float64(base) * intent.LengthMultiplier()
	words = math.Round(words/50) * 50
	return OK(int(math.Max(MinTargetWords, math.Min(MaxTargetWords, words))))
}
