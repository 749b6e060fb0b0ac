package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/enrich"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/quality"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

const sourcesHeading = "## Sources"

// research gathers enrichment data and asks for an outline.
func (o *Orchestrator) research(ctx context.Context, st *state, rec *stageRecord) (string, error) {
	req := st.req
	primary := req.PrimaryKeyword()

	if req.Features.KeywordResearch {
		if o.deps.Insight == nil {
			rec.warn("keyword research skipped: no keyword insight service configured")
		} else {
			related := o.deps.Insight.RelatedKeywords(ctx, primary)
			rec.usage(related.Calls, related.Cost)
			if related.Failed() {
				rec.warn(related.Warning)
			} else {
				st.related = enrich.DedupeKeywords(related.Value, enrich.MaxRelatedKeywords, req.Keywords...)
			}
			intent := o.deps.Insight.SearchIntent(ctx, primary)
			rec.usage(intent.Calls, intent.Cost)
			if intent.Failed() {
				rec.warn(intent.Warning)
			} else {
				st.intent = intent.Value
			}
		}
	}

	if req.Features.WebSearch {
		if o.deps.Search == nil {
			rec.warn("web search skipped: no search oracle configured")
		} else {
			found := o.deps.Search.Search(ctx, req.Topic+" "+primary, o.cfg.SearchDepth)
			rec.usage(found.Calls, found.Cost)
			if found.Failed() {
				rec.warn(found.Warning)
			} else {
				st.sources = found.Value
			}
		}
	}

	prompt := llm.BuildOutlinePrompt(req, llm.ResearchContext{
		RelatedKeywords: st.related,
		SearchIntent:    string(st.intent),
		Sources:         st.sources,
	})
	reply, err := o.generate(ctx, st, rec, prompt)
	if err != nil {
		return "", fmt.Errorf("outline: %w", err)
	}

	var outline llm.Outline
	if derr := llm.DecodeReply("outline", llm.OutlineJSONSchema(), reply, &outline); derr != nil {
		rec.warnf("outline was not structured JSON, used the raw reply: %v", derr)
		st.outline = strings.TrimSpace(reply)
		st.title = outlineTitle(st.outline, req.Topic)
	} else {
		st.outline = llm.RenderOutline(outline)
		st.title = strings.TrimSpace(outline.Title)
		if st.title == "" {
			st.title = req.Topic
		}
	}
	if st.outline == "" {
		return "", errors.New("outline: oracle returned an empty outline")
	}

	st.result.Outline = st.outline
	st.result.SemanticKeywords = st.related
	st.result.SearchIntent = st.intent
	return st.outline, nil
}

// draft writes the article body from the outline.
func (o *Orchestrator) draft(ctx context.Context, st *state, rec *stageRecord) (string, error) {
	req := st.req
	target := req.TargetWords
	if target <= 0 {
		res := o.deps.Length.TargetWords(ctx, req, st.intent)
		rec.usage(res.Calls, res.Cost)
		if res.Failed() {
			rec.warn(res.Warning)
			target = req.Length.Words()
		} else {
			target = res.Value
		}
	}
	prompt := llm.BuildDraftPrompt(req, st.outline, target)

	var text string
	if o.ConsensusEnabled(req) {
		oracles, err := o.deps.Registry.Chain(o.cfg.ConsensusOracles)
		if err != nil {
			return "", err
		}
		res, err := o.deps.Synthesizer.Synthesize(ctx, prompt, oracles, llm.Constraints{})
		rec.usage(res.Calls, res.Cost)
		if err != nil {
			return "", fmt.Errorf("consensus draft: %w", err)
		}
		for _, w := range res.Warnings {
			rec.warn(w)
		}
		text = res.Text
	} else {
		if req.Features.Consensus {
			rec.warn("consensus drafting needs at least two consensus oracles; used the single-oracle chain")
		}
		reply, err := o.generate(ctx, st, rec, prompt)
		if err != nil {
			return "", fmt.Errorf("draft: %w", err)
		}
		text = reply
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("draft: oracle returned an empty draft")
	}
	st.text = text
	return text, nil
}

// enhance fact-checks against the sources, attaches citations and runs the enhancer.
func (o *Orchestrator) enhance(ctx context.Context, st *state, rec *stageRecord) (string, error) {
	req := st.req
	text := st.text

	if len(st.sources) > 0 {
		out, err := st.chain.Generate(ctx, llm.BuildFactCheckPrompt(text, st.sources), llm.Constraints{}, o.cfg.StageTimeout, common.LoggerFromContext(ctx, o.logger))
		rec.usage(out.Calls, out.Cost)
		if err != nil {
			rec.warnf("fact-check unavailable, kept the unverified draft: %v", err)
		} else {
			rec.chainFailures(out.Failed)
			if checked := strings.TrimSpace(out.Generation.Text); checked != "" {
				text = checked
			}
		}
		st.result.Citations = citations(st.sources)
		text = appendSources(text, st.result.Citations)
	}

	if req.Features.Enhancement && o.deps.Enhancer != nil {
		rep := o.deps.Enhancer.Enhance(ctx, text, subject(req), st.chain)
		rec.usage(rep.Calls, rep.Cost)
		for _, w := range rep.Warnings {
			rec.warn(w)
		}
		text = rep.Text
	}

	st.text = text
	return text, nil
}

// polish attaches SEO metadata, semantic keywords, interlinks and the quality score.
func (o *Orchestrator) polish(ctx context.Context, st *state, rec *stageRecord) (string, error) {
	req := st.req
	res := st.result
	primary := req.PrimaryKeyword()

	meta, err := o.meta(ctx, st, rec)
	if err != nil {
		rec.warnf("meta generation failed, used fallback metadata: %v", err)
		meta = fallbackMeta(st.title, st.text)
	}
	res.MetaTitle, res.MetaDescription = meta.MetaTitle, meta.MetaDescription

	keywords := st.related
	if req.Features.KeywordResearch && o.deps.Insight != nil {
		more := o.deps.Insight.RelatedKeywords(ctx, st.title)
		rec.usage(more.Calls, more.Cost)
		if more.Failed() {
			rec.warn(more.Warning)
		} else {
			keywords = append(append([]string{}, keywords...), more.Value...)
		}
	}
	res.SemanticKeywords = enrich.DedupeKeywords(keywords, enrich.MaxRelatedKeywords, req.Keywords...)

	if req.Features.Interlinking && o.deps.Interlinks != nil {
		links, err := o.deps.Interlinks.Find(ctx, primary, req.Corpus, o.cfg.MaxInterlinks)
		if err != nil {
			rec.warnf("interlinking unavailable: %v", err)
		} else {
			res.Interlinks = links
		}
		o.deps.Metrics.InterlinkQuery()
	}

	score := quality.Score(st.text, quality.Options{Keyword: primary})
	res.QualityScore = &score
	res.FinalText = st.text
	res.Title = st.title
	res.WordCount = textutil.WordCount(st.text)
	return st.text, nil
}

func (o *Orchestrator) meta(ctx context.Context, st *state, rec *stageRecord) (llm.Meta, error) {
	out, err := st.chain.Generate(ctx, llm.BuildMetaPrompt(st.title, st.req.PrimaryKeyword(), st.text), llm.Constraints{}, o.cfg.StageTimeout, common.LoggerFromContext(ctx, o.logger))
	rec.usage(out.Calls, out.Cost)
	if err != nil {
		return llm.Meta{}, err
	}
	rec.chainFailures(out.Failed)
	var m llm.Meta
	if err := llm.DecodeReply("meta", llm.MetaJSONSchema(), out.Generation.Text, &m); err != nil {
		return llm.Meta{}, err
	}
	m, _ = llm.SanitizeMeta(m)
	if m.MetaTitle == "" || m.MetaDescription == "" {
		return llm.Meta{}, errors.New("empty meta field")
	}
	return m, nil
}

// fallbackMeta derives metadata from the title and the first prose sentence.
func fallbackMeta(title, text string) llm.Meta {
	desc := ""
	for _, s := range textutil.Sentences(text) {
		if s = strings.TrimSpace(s); s != "" {
			desc = s
			break
		}
	}
	if desc == "" {
		desc = title
	}
	m, _ := llm.SanitizeMeta(llm.Meta{MetaTitle: title, MetaDescription: desc})
	return m
}

// outlineTitle takes the first heading or line of a plain-text outline.
func outlineTitle(outline, fallback string) string {
	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return fallback
}

func citations(sources []entity.SearchResult) []entity.Citation {
	out := make([]entity.Citation, 0, len(sources))
	for i, s := range sources {
		out = append(out, entity.Citation{Index: i + 1, URL: s.URL, Title: s.Title})
	}
	return out
}

// appendSources adds a Sources section unless the text already has one.
func appendSources(text string, cites []entity.Citation) string {
	if len(cites) == 0 {
		return text
	}
	for _, h := range textutil.Headings(text) {
		if strings.EqualFold(strings.TrimSpace(strings.TrimLeft(h, "#")), "sources") {
			return text
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n\n")
	b.WriteString(sourcesHeading)
	b.WriteString("\n\n")
	for _, c := range cites {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", c.Index, title, c.URL)
	}
	return b.String()
}

// subject is the phrase the enhancer templates talk about.
func subject(req entity.GenerationRequest) string {
	if kw := req.PrimaryKeyword(); kw != "" {
		return kw
	}
	return strings.ToLower(req.Topic)
}
