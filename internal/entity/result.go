package entity

import (
	"maps"
	"slices"

	"github.com/joseph-ayodele/content-engine/constants"
)

// PipelineResult is the output of one pipeline run.
type PipelineResult struct {
	StageResults      []StageResult          `json:"stage_results"`
	FinalText         string                 `json:"final_text"`
	Title             string                 `json:"title"`
	MetaTitle         string                 `json:"meta_title"`
	MetaDescription   string                 `json:"meta_description"`
	Outline           string                 `json:"outline,omitempty"`
	SemanticKeywords  []string               `json:"semantic_keywords,omitempty"`
	SearchIntent      constants.SearchIntent `json:"search_intent,omitempty"`
	QualityScore      *QualityScore          `json:"quality_score"`
	Citations         []Citation             `json:"citations"`
	Interlinks        []InterlinkOpportunity `json:"interlinks,omitempty"`
	Warnings          []string               `json:"warnings"`
	TotalOracleCalls  int                    `json:"total_oracle_calls"`
	TotalCostEstimate float64                `json:"total_cost_estimate"`
	WordCount         int                    `json:"word_count"`
	ArtifactURI       string                 `json:"artifact_uri,omitempty"`
}

// StageResult records what one stage did.
type StageResult struct {
	StageName       constants.Stage `json:"stage_name"`
	Succeeded       bool            `json:"succeeded"`
	OutputText      *string         `json:"output_text"`
	Warnings        []string        `json:"warnings"`
	OracleCallsMade int             `json:"oracle_calls_made"`
	DurationMS      int64           `json:"duration_ms"`
}

// Citation is a source referenced by the final text.
type Citation struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SearchResult is one hit returned by a search oracle.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Quality dimension names.
const (
	DimReadability   = "readability"
	DimSEO           = "seo"
	DimStructure     = "structure"
	DimFactual       = "factual"
	DimUniqueness    = "uniqueness"
	DimEngagement    = "engagement"
	DimEEAT          = "eeat"
	DimAccessibility = "accessibility"
)

// QualityDimensions lists the dimensions in reporting order.
var QualityDimensions = []string{
	DimReadability, DimSEO, DimStructure, DimFactual,
	DimUniqueness, DimEngagement, DimEEAT, DimAccessibility,
}

// QualityScore is a multi-dimension score of a text body; all values are in [0,100].
type QualityScore struct {
	Overall    float64            `json:"overall"`
	Dimensions map[string]float64 `json:"dimensions"`
}

// Clone returns a deep copy.
func (r *PipelineResult) Clone() *PipelineResult {
	if r == nil {
		return nil
	}
	out := *r
	out.StageResults = make([]StageResult, len(r.StageResults))
	for i, s := range r.StageResults {
		out.StageResults[i] = s.clone()
	}
	out.SemanticKeywords = slices.Clone(r.SemanticKeywords)
	out.Citations = slices.Clone(r.Citations)
	out.Interlinks = slices.Clone(r.Interlinks)
	out.Warnings = slices.Clone(r.Warnings)
	if r.QualityScore != nil {
		qs := *r.QualityScore
		qs.Dimensions = maps.Clone(r.QualityScore.Dimensions)
		out.QualityScore = &qs
	}
	return &out
}

func (s StageResult) clone() StageResult {
	out := s
	out.Warnings = slices.Clone(s.Warnings)
	if s.OutputText != nil {
		t := *s.OutputText
		out.OutputText = &t
	}
	return out
}
