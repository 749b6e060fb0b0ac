package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/enhance"
	"github.com/joseph-ayodele/content-engine/internal/enrich"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

const (
	outlineReply = `{"title":"Go Concurrency in Practice","sections":[{"heading":"Goroutines","points":["what they are"]},{"heading":"Channels"}]}`
	metaReply    = `{"meta_title":"Go Concurrency in Practice","meta_description":"A short guide to goroutines and channels."}`
	draftReply   = "# Go Concurrency in Practice\n\n" +
		"Go makes it easy to run work at the same time. You start a goroutine with one word. It is cheap and fast.\n\n" +
		"## Goroutines\n\n" +
		"A goroutine is a small task. The runtime runs many of them on a few threads. You can start one for each job.\n\n" +
		"## Channels\n\n" +
		"Channels pass values between goroutines. They keep your data safe. Use them to wait for work to end.\n\n" +
		"- send with the arrow\n- close when done\n"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gen(name, text string) (llm.Generation, error) {
	return llm.Generation{Oracle: name, Text: text, TokensUsed: 100, CostEstimate: 0.001}, nil
}

// scripted answers each prompt kind with a canned reply.
func scripted(name string) llm.Oracle {
	return llm.OracleFunc{OracleName: name, Fn: func(_ context.Context, prompt string, _ llm.Constraints) (llm.Generation, error) {
		switch {
		case strings.Contains(prompt, "Plan a long-form article"):
			return gen(name, outlineReply)
		case strings.Contains(prompt, "Write SEO metadata"):
			return gen(name, metaReply)
		case strings.Contains(prompt, "Review the article"):
			return gen(name, strings.Replace(draftReply, "It is cheap and fast.", "It is cheap and fast [1].", 1))
		default:
			return gen(name, draftReply)
		}
	}}
}

func failing(name string) llm.Oracle {
	return llm.OracleFunc{OracleName: name, Fn: func(context.Context, string, llm.Constraints) (llm.Generation, error) {
		return llm.Generation{}, common.NewOracleUnavailable(name, errors.New("503"))
	}}
}

type fakeInsight struct {
	fail    bool
	related []string
}

func (f fakeInsight) RelatedKeywords(_ context.Context, seed string) enrich.Result[[]string] {
	if f.fail {
		return enrich.Degraded[[]string]("keyword insight", errors.New("service down"))
	}
	return enrich.OK(f.related).WithUsage(1, 0.0005)
}

func (f fakeInsight) SearchIntent(context.Context, string) enrich.Result[constants.SearchIntent] {
	if f.fail {
		return enrich.Degraded[constants.SearchIntent]("search intent", errors.New("service down"))
	}
	return enrich.OK(constants.IntentInformational)
}

type fakeSearch struct{}

func (fakeSearch) Search(context.Context, string, int) enrich.Result[[]entity.SearchResult] {
	return enrich.OK([]entity.SearchResult{
		{URL: "https://go.dev/doc/effective_go", Title: "Effective Go", Snippet: "Goroutines are cheap."},
		{URL: "https://go.dev/blog/pipelines", Title: "Pipelines", Snippet: "Channels connect stages."},
	})
}

type fakeArchiver struct {
	mu    sync.Mutex
	jobID string
	fail  bool
}

func (a *fakeArchiver) Archive(_ context.Context, jobID string, _ *entity.PipelineResult) (string, error) {
	if a.fail {
		return "", errors.New("disk full")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobID = jobID
	return "file:///tmp/" + jobID + ".md", nil
}

func boolPtr(b bool) *bool { return &b }

func request(t *testing.T, flags *entity.FeatureFlags, corpus ...entity.ContentItem) entity.GenerationRequest {
	t.Helper()
	req, err := entity.SubmitRequest{
		Topic:    "Go concurrency",
		Keywords: []string{"go concurrency", "goroutines"},
		Features: flags,
		Corpus:   corpus,
	}.Validate(nil)
	require.NoError(t, err)
	return req
}

func newOrchestrator(t *testing.T, cfg Config, deps Deps, oracles ...llm.Oracle) *Orchestrator {
	t.Helper()
	deps.Registry = llm.NewRegistry(oracles...)
	o, err := NewOrchestrator(cfg, deps, quietLogger())
	require.NoError(t, err)
	return o
}

func TestRunAllStages(t *testing.T) {
	archiver := &fakeArchiver{}
	o := newOrchestrator(t, Config{StageTimeout: time.Second, PipelineTimeout: time.Minute}, Deps{
		Enhancer:   enhance.NewEnhancer(0, time.Second, quietLogger()),
		Insight:    fakeInsight{related: []string{"goroutines", "go channels", "Go Channels", "sync package"}},
		Search:     fakeSearch{},
		Interlinks: interlink.NewService(nil, 10, quietLogger()),
		Archiver:   archiver,
	}, scripted("alpha"))

	req := request(t, &entity.FeatureFlags{WebSearch: boolPtr(true)}, entity.ContentItem{
		ID: "c1", Title: "Go Concurrency Patterns", URL: "https://example.com/patterns", Keywords: []string{"go concurrency"},
	})

	type step struct {
		percent int
		stage   string
	}
	var steps []step
	ctx := common.WithJobID(context.Background(), "job-42")
	res, err := o.Run(ctx, req, func(_ context.Context, p int, s string) { steps = append(steps, step{p, s}) })
	require.NoError(t, err)

	assert.Equal(t, []step{
		{5, "research"}, {25, "draft"}, {55, "enhancement"}, {80, "polish"}, {95, "finishing"},
	}, steps)

	require.Len(t, res.StageResults, 4)
	for i, name := range constants.Stages {
		assert.Equal(t, name, res.StageResults[i].StageName)
		assert.True(t, res.StageResults[i].Succeeded)
		require.NotNil(t, res.StageResults[i].OutputText)
	}

	assert.Equal(t, "Go Concurrency in Practice", res.Title)
	assert.Equal(t, "Go Concurrency in Practice", res.MetaTitle)
	assert.Equal(t, "A short guide to goroutines and channels.", res.MetaDescription)
	assert.Contains(t, res.FinalText, "[1]")
	assert.Contains(t, res.FinalText, sourcesHeading)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, 1, res.Citations[0].Index)
	assert.Equal(t, constants.IntentInformational, res.SearchIntent)
	assert.Equal(t, []string{"go channels", "sync package"}, res.SemanticKeywords)
	require.Len(t, res.Interlinks, 1)
	assert.Equal(t, "c1", res.Interlinks[0].ContentID)
	assert.Equal(t, "job-42", archiver.jobID)
	assert.Equal(t, "file:///tmp/job-42.md", res.ArtifactURI)
	assert.Positive(t, res.WordCount)

	require.NotNil(t, res.QualityScore)
	assert.GreaterOrEqual(t, res.QualityScore.Overall, 0.0)
	assert.LessOrEqual(t, res.QualityScore.Overall, 100.0)

	calls := 0
	for _, s := range res.StageResults {
		calls += s.OracleCallsMade
	}
	assert.Equal(t, calls, res.TotalOracleCalls)
	assert.GreaterOrEqual(t, res.TotalOracleCalls, 4, "outline, draft, fact-check and meta at least")
	assert.Positive(t, res.TotalCostEstimate)
}

func TestResearchDegradesWhenInsightFails(t *testing.T) {
	o := newOrchestrator(t, Config{}, Deps{Insight: fakeInsight{fail: true}}, scripted("alpha"))

	res, err := o.Run(context.Background(), request(t, nil), nil)
	require.NoError(t, err)

	research := res.StageResults[0]
	assert.True(t, research.Succeeded)
	require.NotEmpty(t, research.Warnings)
	assert.Contains(t, research.Warnings[0], "keyword insight unavailable")
	require.NotNil(t, research.OutputText)
	assert.NotEmpty(t, *research.OutputText)
	assert.Equal(t, research.Warnings, res.Warnings[:len(research.Warnings)], "stage warnings come first, in order")
}

func TestFallbackChainRecordsWarning(t *testing.T) {
	o := newOrchestrator(t, Config{DefaultChain: []string{"broken", "alpha"}}, Deps{}, failing("broken"), scripted("alpha"))

	res, err := o.Run(context.Background(), request(t, &entity.FeatureFlags{KeywordResearch: boolPtr(false)}), nil)
	require.NoError(t, err)
	assert.Contains(t, res.StageResults[0].Warnings[0], "oracle broken failed")
	assert.Equal(t, 2, res.StageResults[0].OracleCallsMade)
}

func TestStageOracleCallsLogWithJobLogger(t *testing.T) {
	alpha := scripted("alpha")
	picky := llm.OracleFunc{OracleName: "picky", Fn: func(ctx context.Context, prompt string, c llm.Constraints) (llm.Generation, error) {
		if strings.Contains(prompt, "Review the article") || strings.Contains(prompt, "Write SEO metadata") {
			return llm.Generation{}, common.NewOracleUnavailable("picky", errors.New("503"))
		}
		return alpha.Generate(ctx, prompt, c)
	}}
	o := newOrchestrator(t, Config{DefaultChain: []string{"picky", "alpha"}}, Deps{Search: fakeSearch{}}, picky, alpha)

	var buf bytes.Buffer
	jobLogger := slog.New(slog.NewJSONHandler(&buf, nil)).With("job_id", "job-7")
	ctx := common.WithLogger(context.Background(), jobLogger)
	req := request(t, &entity.FeatureFlags{WebSearch: boolPtr(true), KeywordResearch: boolPtr(false)})
	_, err := o.Run(ctx, req, nil)
	require.NoError(t, err)

	failures := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] != "llm.chain.attempt_failed" {
			continue
		}
		failures++
		assert.Equal(t, "job-7", rec["job_id"])
		assert.Equal(t, "picky", rec["oracle"])
	}
	assert.Equal(t, 2, failures, "fact-check and meta attempts log through the job logger")
}

func TestPrimaryFailureIsFatal(t *testing.T) {
	o := newOrchestrator(t, Config{}, Deps{}, failing("broken"))

	res, err := o.Run(context.Background(), request(t, nil), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrAllOraclesFailed)
	assert.Contains(t, err.Error(), "research stage")
}

func TestConsensusAllOraclesFailed(t *testing.T) {
	o := newOrchestrator(t,
		Config{DefaultChain: []string{"alpha"}, ConsensusOracles: []string{"bad1", "bad2"}},
		Deps{},
		scripted("alpha"), failing("bad1"), failing("bad2"),
	)

	var last string
	_, err := o.Run(context.Background(), request(t, &entity.FeatureFlags{Consensus: boolPtr(true)}), func(_ context.Context, _ int, s string) { last = s })
	require.Error(t, err)
	var all *common.AllOraclesFailedError
	require.ErrorAs(t, err, &all)
	assert.ElementsMatch(t, []string{"bad1", "bad2"}, all.Order)
	assert.Equal(t, "draft", last, "no stage starts after the failed draft")
}

func TestConsensusNeedsTwoOracles(t *testing.T) {
	o := newOrchestrator(t, Config{ConsensusOracles: []string{"alpha"}}, Deps{}, scripted("alpha"))
	res, err := o.Run(context.Background(), request(t, &entity.FeatureFlags{Consensus: boolPtr(true)}), nil)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(res.StageResults[1].Warnings, "\n"), "consensus drafting needs at least two")
}

func TestPipelineDeadline(t *testing.T) {
	slow := llm.OracleFunc{OracleName: "slow", Fn: func(ctx context.Context, _ string, _ llm.Constraints) (llm.Generation, error) {
		<-ctx.Done()
		return llm.Generation{}, ctx.Err()
	}}
	o := newOrchestrator(t, Config{PipelineTimeout: 30 * time.Millisecond}, Deps{}, slow)

	_, err := o.Run(context.Background(), request(t, nil), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestMetaAndOutlineFallbacks(t *testing.T) {
	loose := llm.OracleFunc{OracleName: "loose", Fn: func(_ context.Context, prompt string, _ llm.Constraints) (llm.Generation, error) {
		switch {
		case strings.Contains(prompt, "Plan a long-form article"):
			return gen("loose", "# Concurrency Field Notes\n- goroutines\n- channels")
		case strings.Contains(prompt, "Write SEO metadata"):
			return gen("loose", "Sorry, I cannot help with that.")
		default:
			return gen("loose", draftReply)
		}
	}}
	archiver := &fakeArchiver{fail: true}
	o := newOrchestrator(t, Config{}, Deps{Archiver: archiver}, loose)

	res, err := o.Run(context.Background(), request(t, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "Concurrency Field Notes", res.Title)
	assert.Equal(t, "Concurrency Field Notes", res.MetaTitle)
	assert.Equal(t, "Go makes it easy to run work at the same time.", res.MetaDescription)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "outline was not structured JSON")
	assert.Contains(t, joined, "meta generation failed")
	assert.Contains(t, joined, "keyword research skipped")
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "archive unavailable")
	assert.Empty(t, res.ArtifactURI)
}

func TestUnknownOracleInRequest(t *testing.T) {
	o := newOrchestrator(t, Config{}, Deps{}, scripted("alpha"))
	req := request(t, nil)
	req.Oracles = []string{"ghost"}
	_, err := o.Run(context.Background(), req, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
