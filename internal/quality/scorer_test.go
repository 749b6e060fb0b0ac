package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

const wellFormed = `# Container Security Guide

Container security starts with small images. In my experience, teams that pin base images ship fewer vulnerabilities [1]. Why does that matter? Every extra package is another thing to patch.

## Scanning container images

For example, a scanner can flag 12 known issues in a default image. We recommend scanning on every build. Try a free scanner on your next pull request.

- Pin base images
- Scan on every build
- Rotate credentials

## Runtime container security

I've found that read-only file systems stop most tampering. For instance, a compromised process cannot drop a binary. See https://example.com/runtime for details.`

func TestScoreBounds(t *testing.T) {
	inputs := []string{
		wellFormed,
		"word",
		strings.Repeat("same same same. ", 200),
		"?!?!",
		strings.Repeat("Extraordinarily convoluted institutional terminology proliferates uncontrollably ", 40),
	}
	for _, in := range inputs {
		s := Score(in, Options{Keyword: "container security"})
		assert.GreaterOrEqual(t, s.Overall, 0.0)
		assert.LessOrEqual(t, s.Overall, 100.0)
		require.Len(t, s.Dimensions, len(entity.QualityDimensions))
		for d, v := range s.Dimensions {
			assert.GreaterOrEqual(t, v, 0.0, d)
			assert.LessOrEqual(t, v, 100.0, d)
		}
	}
}

func TestScoreEmptyText(t *testing.T) {
	s := Score("   ", Options{Keyword: "x"})
	assert.Equal(t, 0.0, s.Overall)
	for _, d := range entity.QualityDimensions {
		assert.Equal(t, 0.0, s.Dimensions[d], d)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, d := range entity.QualityDimensions {
		sum += Weights[d]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestScoreRewardsStructureAndSignals(t *testing.T) {
	flat := strings.Repeat("Container security is a topic that many people discuss at length without structure ", 12)
	good := Score(wellFormed, Options{Keyword: "container security"})
	bad := Score(flat, Options{Keyword: "container security"})

	assert.Greater(t, good.Dimensions[entity.DimStructure], bad.Dimensions[entity.DimStructure])
	assert.Greater(t, good.Dimensions[entity.DimEngagement], bad.Dimensions[entity.DimEngagement])
	assert.Greater(t, good.Dimensions[entity.DimEEAT], bad.Dimensions[entity.DimEEAT])
	assert.Greater(t, good.Dimensions[entity.DimUniqueness], bad.Dimensions[entity.DimUniqueness])
	assert.Greater(t, good.Overall, bad.Overall)
}

func TestSEONeutralWithoutKeyword(t *testing.T) {
	s := Score(wellFormed, Options{})
	assert.Equal(t, 50.0, s.Dimensions[entity.DimSEO])
}

func TestKeywordDensity(t *testing.T) {
	text := "web development is fun. web development pays."
	// 7 words, keyword of 2 words appears twice
	assert.InDelta(t, 4.0/7.0*100, KeywordDensity(text, 7, "Web Development"), 1e-9)
	assert.Equal(t, 0.0, KeywordDensity(text, 7, ""))
}

func TestKeywordDensityIgnoresWordFragments(t *testing.T) {
	text := "Good cargo going ago. Go is simple."
	assert.InDelta(t, 1.0/7.0*100, KeywordDensity(text, 7, "go"), 1e-9)
	assert.Equal(t, 0.0, KeywordDensity("good cargo going ago", 4, "go"))
}

func TestHeadingKeywordNeedsWholeWord(t *testing.T) {
	body := "\n\nGood cargo planning pays off. Shipping ago was slower and going by sea was common."
	fragment := Score("# Cargo tips"+body, Options{Keyword: "go"})
	whole := Score("# Go tips"+body, Options{Keyword: "go"})

	assert.Equal(t, 0.0, fragment.Dimensions[entity.DimSEO])
	assert.GreaterOrEqual(t, whole.Dimensions[entity.DimSEO], 30.0)
}

func TestOverallIsWeightedSum(t *testing.T) {
	first := Score(wellFormed, Options{Keyword: "container security"})
	sum := 0.0
	for _, d := range entity.QualityDimensions {
		sum += Weights[d] * first.Dimensions[d]
	}
	assert.Equal(t, textutil.Round(textutil.Clamp(sum, 0, 100), 2), first.Overall)
	for range 50 {
		assert.Equal(t, first.Overall, Score(wellFormed, Options{Keyword: "container security"}).Overall)
	}
}

func TestScoreIsPure(t *testing.T) {
	a := Score(wellFormed, Options{Keyword: "container security"})
	b := Score(wellFormed, Options{Keyword: "container security"})
	assert.Equal(t, a, b)
}

func TestTargets(t *testing.T) {
	q, e, c := EngagementTargets(1000)
	assert.Equal(t, 2, q)
	assert.Equal(t, 5, e)
	assert.Equal(t, 1, c)
	assert.Equal(t, 3, ExperienceTarget(1000))
	assert.Equal(t, 1, ExperienceTarget(10))
}
