package entity

import (
	"time"

	"github.com/joseph-ayodele/content-engine/constants"
)

// ContentItem is an existing published piece the interlinking engine can point at.
type ContentItem struct {
	ID          string     `json:"id" yaml:"id" validate:"notblank"`
	Title       string     `json:"title" yaml:"title" validate:"notblank"`
	URL         string     `json:"url" yaml:"url" validate:"notblank"`
	Slug        string     `json:"slug,omitempty" yaml:"slug"`
	Keywords    []string   `json:"keywords" yaml:"keywords"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at"`
}

// InterlinkOpportunity is one ranked internal-link suggestion.
type InterlinkOpportunity struct {
	ContentID       string              `json:"content_id"`
	TargetURL       string              `json:"target_url"`
	TargetTitle     string              `json:"target_title"`
	AnchorText      string              `json:"anchor_text"`
	RelevanceScore  float64             `json:"relevance_score"`
	MatchType       constants.MatchType `json:"match_type"`
	MatchedKeywords []string            `json:"matched_keywords,omitempty"`
}
