// Package enhance adds missing engagement, readability and credibility signals to
// article text. The insertion passes are deterministic; only the readability pass
// calls an oracle.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/quality"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

// DefaultReadabilityThreshold is the Flesch reading-ease floor that triggers a rewrite.
const DefaultReadabilityThreshold = 60.0

// Insertions counts the sentences added by the deterministic passes.
type Insertions struct {
	Questions  int `json:"questions"`
	Examples   int `json:"examples"`
	CTAs       int `json:"ctas"`
	Experience int `json:"experience"`
}

// Total is the number of inserted sentences.
func (i Insertions) Total() int {
	return i.Questions + i.Examples + i.CTAs + i.Experience
}

// Report describes one Enhance run.
type Report struct {
	Text              string
	ReadabilityBefore float64
	ReadabilityAfter  float64
	Rewritten         bool
	Inserted          Insertions
	Calls             int
	Cost              float64
	Warnings          []string
}

// Enhancer runs the readability, engagement and experience passes in that order.
type Enhancer struct {
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

func NewEnhancer(threshold float64, timeout time.Duration, logger *slog.Logger) *Enhancer {
	if threshold <= 0 {
		threshold = DefaultReadabilityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{threshold: threshold, timeout: timeout, logger: logger}
}

// Enhance runs every pass over text. subject fills the templates. A failed rewrite
// keeps the original text and becomes a warning; Enhance itself never fails.
func (e *Enhancer) Enhance(ctx context.Context, text, subject string, rewriters llm.Chain) Report {
	rep := Report{Text: text, ReadabilityBefore: textutil.FleschReadingEase(text)}

	if NeedsReadabilityPass(text, e.threshold) {
		rep.Text = e.improveReadability(ctx, &rep, rewriters)
	}

	var n int
	rep.Text, rep.Inserted = InjectEngagement(rep.Text, subject)
	rep.Text, n = InjectExperience(rep.Text, subject)
	rep.Inserted.Experience = n

	rep.ReadabilityAfter = textutil.FleschReadingEase(rep.Text)
	e.logger.Debug("enhance.done",
		"readability_before", rep.ReadabilityBefore,
		"readability_after", rep.ReadabilityAfter,
		"rewritten", rep.Rewritten,
		"inserted", rep.Inserted.Total(),
	)
	return rep
}

// NeedsReadabilityPass reports whether non-empty text reads below threshold.
func NeedsReadabilityPass(text string, threshold float64) bool {
	return textutil.WordCount(text) > 0 && textutil.FleschReadingEase(text) < threshold
}

func (e *Enhancer) improveReadability(ctx context.Context, rep *Report, rewriters llm.Chain) string {
	if len(rewriters) == 0 {
		rep.Warnings = append(rep.Warnings, "readability pass skipped: no oracle available")
		return rep.Text
	}
	prompt := llm.BuildReadabilityPrompt(rep.Text, rep.ReadabilityBefore, e.threshold)
	out, err := rewriters.Generate(ctx, prompt, llm.Constraints{}, e.timeout, common.LoggerFromContext(ctx, e.logger))
	rep.Calls += out.Calls
	rep.Cost += out.Cost
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("readability rewrite failed: %v", err))
		return rep.Text
	}
	for _, a := range out.Failed {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("readability rewrite: oracle %s failed: %v", a.Oracle, a.Err))
	}
	rewritten := strings.TrimSpace(out.Generation.Text)
	if rewritten == "" || textutil.FleschReadingEase(rewritten) <= rep.ReadabilityBefore {
		rep.Warnings = append(rep.Warnings, "readability rewrite did not improve the score; kept the original")
		return rep.Text
	}
	rep.Rewritten = true
	return rewritten
}

// InjectEngagement adds rhetorical questions, examples and calls to action until
// each reaches its target density. CTAs go last so they land toward the end.
func InjectEngagement(text, subject string) (string, Insertions) {
	words := textutil.WordCount(text)
	if words == 0 {
		return text, Insertions{}
	}
	tq, te, tc := quality.EngagementTargets(words)
	ins := Insertions{
		Questions: max(0, tq-textutil.CountQuestions(text)),
		Examples:  max(0, te-textutil.CountPhrases(text, quality.ExampleMarkers)),
		CTAs:      max(0, tc-textutil.CountPhrases(text, quality.CTAMarkers)),
	}
	var sentences []string
	sentences = append(sentences, fill(questionTemplates, ins.Questions, subject)...)
	sentences = append(sentences, fill(exampleTemplates, ins.Examples, subject)...)
	sentences = append(sentences, fill(ctaTemplates, ins.CTAs, subject)...)
	out, ok := insert(text, sentences)
	if !ok {
		return text, Insertions{}
	}
	return out, ins
}

// InjectExperience adds first-person credibility phrases up to three per 1000 words.
func InjectExperience(text, subject string) (string, int) {
	words := textutil.WordCount(text)
	if words == 0 {
		return text, 0
	}
	need := max(0, quality.ExperienceTarget(words)-textutil.CountPhrases(text, quality.ExperienceMarkers))
	out, ok := insert(text, fill(experienceTemplates, need, subject))
	if !ok {
		return text, 0
	}
	return out, need
}

func fill(templates []string, n int, subject string) []string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "this topic"
	}
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf(templates[i%len(templates)], subject)
	}
	return out
}

// insert appends sentences to the ends of evenly spaced prose paragraphs.
// It reports false when text has no eligible paragraph.
func insert(text string, sentences []string) (string, bool) {
	if len(sentences) == 0 {
		return text, true
	}
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	eligible := eligibleBlocks(blocks)
	if len(eligible) == 0 {
		return text, false
	}
	for i, s := range sentences {
		idx := eligible[i*len(eligible)/len(sentences)]
		blocks[idx] = appendSentence(blocks[idx], s)
	}
	return strings.Join(blocks, "\n\n"), true
}

func eligibleBlocks(blocks []string) []int {
	var out []int
	inCode := false
	for i, b := range blocks {
		prose := strings.TrimSpace(b) != ""
		for _, line := range strings.Split(b, "\n") {
			if textutil.IsCodeFence(line) {
				inCode = !inCode
				prose = false
				continue
			}
			if inCode || textutil.IsHeading(line) || textutil.IsListItem(line) || textutil.IsTableRow(line) {
				prose = false
			}
		}
		if prose && !inCode {
			out = append(out, i)
		}
	}
	return out
}

func appendSentence(block, sentence string) string {
	trimmed := strings.TrimRight(block, " \t\n")
	if trimmed == "" {
		return sentence
	}
	trailing := block[len(trimmed):]
	if !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?:\"')") {
		trimmed += "."
	}
	return trimmed + " " + sentence + trailing
}
