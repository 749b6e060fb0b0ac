package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// ResearchContext is the enrichment data gathered before outlining.
type ResearchContext struct {
	RelatedKeywords []string
	SearchIntent    string
	Sources         []entity.SearchResult
}

// BuildOutlinePrompt asks for a JSON outline matching OutlineJSONSchema.
func BuildOutlinePrompt(req entity.GenerationRequest, rc ResearchContext) string {
	parts := []string{
		"You are a senior content strategist. Plan a long-form article.",
		"Topic: " + req.Topic + ".",
		"Primary keyword: " + req.PrimaryKeyword() + ".",
	}
	if len(req.Keywords) > 1 {
		parts = append(parts, "Secondary keywords: "+strings.Join(req.Keywords[1:], ", ")+".")
	}
	if len(rc.RelatedKeywords) > 0 {
		parts = append(parts, "Related searches: "+strings.Join(rc.RelatedKeywords, ", ")+".")
	}
	if rc.SearchIntent != "" {
		parts = append(parts, "Searcher intent: "+rc.SearchIntent+".")
	}
	if req.Audience != "" {
		parts = append(parts, "Audience: "+req.Audience+".")
	}
	if len(rc.Sources) > 0 {
		parts = append(parts, "Reference material:\n"+formatSources(rc.Sources))
	}
	parts = append(parts,
		"Return ONLY JSON that matches this JSON Schema:",
		mustJSON(OutlineJSONSchema()),
	)
	return strings.Join(parts, "\n")
}

// BuildDraftPrompt asks for the article body in markdown.
func BuildDraftPrompt(req entity.GenerationRequest, outline string, targetWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s article of about %d words in markdown.\n", req.Tone, targetWords)
	fmt.Fprintf(&b, "Topic: %s\nKeywords: %s\n", req.Topic, strings.Join(req.Keywords, ", "))
	if req.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", req.Audience)
	}
	b.WriteString("Use '## ' headings for sections, short paragraphs, and at least one list.\n")
	b.WriteString("Use the primary keyword naturally in the introduction and one heading.\n\n")
	b.WriteString("Outline:\n")
	b.WriteString(outline)
	return b.String()
}

// BuildFactCheckPrompt asks to correct claims against sources and cite them as [n].
func BuildFactCheckPrompt(draft string, sources []entity.SearchResult) string {
	var b strings.Builder
	b.WriteString("Review the article below for factual accuracy against the numbered sources.\n")
	b.WriteString("Correct or soften unsupported claims. Cite supporting sources inline as [n].\n")
	b.WriteString("Keep the structure, headings and length. Return ONLY the revised article.\n\n")
	b.WriteString("Sources:\n")
	b.WriteString(formatSources(sources))
	b.WriteString("\nArticle:\n")
	b.WriteString(draft)
	return b.String()
}

// BuildReadabilityPrompt asks for one simplification pass.
func BuildReadabilityPrompt(text string, score, threshold float64) string {
	return fmt.Sprintf(
		"The article below has a reading-ease score of %.0f; the target is at least %.0f.\n"+
			"Rewrite it with shorter sentences and plainer words. Keep every heading, list, "+
			"citation marker and fact. Return ONLY the rewritten article.\n\n%s",
		score, threshold, text)
}

// BuildMetaPrompt asks for SEO metadata as JSON.
func BuildMetaPrompt(title, keyword, text string) string {
	excerpt := text
	if r := []rune(excerpt); len(r) > 1500 {
		excerpt = string(r[:1500])
	}
	return strings.Join([]string{
		"Write SEO metadata for the article below.",
		fmt.Sprintf("meta_title: at most %d characters, include %q.", MaxMetaTitle, keyword),
		fmt.Sprintf("meta_description: at most %d characters, one sentence, no quotes.", MaxMetaDescription),
		"Return ONLY JSON that matches this JSON Schema:",
		mustJSON(MetaJSONSchema()),
		"Title: " + title,
		"Article excerpt:\n" + excerpt,
	}, "\n")
}

// BuildInsightPrompt asks for related keywords and the search intent of seed.
func BuildInsightPrompt(seed string) string {
	return strings.Join([]string{
		"You are an SEO keyword researcher.",
		fmt.Sprintf("List up to 15 related search keywords for %q and classify its search intent.", seed),
		"Return ONLY JSON that matches this JSON Schema:",
		mustJSON(InsightJSONSchema()),
	}, "\n")
}

// BuildSummarizePrompt asks a secondary oracle to merge candidate drafts.
func BuildSummarizePrompt(original string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Several writers answered the same brief. Merge their drafts into one article that keeps ")
	b.WriteString("the strongest sections of each, removes repetition, and follows the brief.\n")
	b.WriteString("Return ONLY the merged article.\n\nBrief:\n")
	b.WriteString(original)
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n\n--- Draft %d ---\n%s", i+1, c)
	}
	return b.String()
}

// RenderOutline turns a structured outline into the markdown handed to the draft stage.
func RenderOutline(o Outline) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(o.Title)
	b.WriteString("\n")
	for _, s := range o.Sections {
		b.WriteString("\n## ")
		b.WriteString(s.Heading)
		b.WriteString("\n")
		for _, p := range s.Points {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatSources(sources []entity.SearchResult) string {
	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s): %s\n", i+1, s.Title, s.URL, s.Snippet)
	}
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
