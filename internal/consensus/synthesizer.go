// Package consensus fans one prompt out to several oracles and merges the answers.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

var tracer = otel.Tracer("content-engine/consensus")

// Candidate is one successful oracle answer.
type Candidate struct {
	Oracle     string
	Text       string
	TokensUsed int
	Cost       float64
}

// Result is the merged answer plus accounting for every call made.
type Result struct {
	Text string
	// Source is the winning oracle, or the summarizer when candidates were merged.
	Source     string
	Candidates []Candidate
	Failed     []llm.Attempt
	Calls      int
	Cost       float64
	Warnings   []string
}

type Synthesizer struct {
	strategy   constants.MergeStrategy
	summarizer llm.Oracle
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Synthesizer)

func WithStrategy(s constants.MergeStrategy) Option {
	return func(sy *Synthesizer) {
		if s != "" {
			sy.strategy = s
		}
	}
}

// WithSummarizer sets the oracle used by the summarize strategy.
func WithSummarizer(o llm.Oracle) Option {
	return func(sy *Synthesizer) { sy.summarizer = o }
}

// WithTimeout bounds each oracle call.
func WithTimeout(d time.Duration) Option {
	return func(sy *Synthesizer) {
		if d > 0 {
			sy.timeout = d
		}
	}
}

func NewSynthesizer(logger *slog.Logger, opts ...Option) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synthesizer{strategy: constants.MergeLongest, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize calls every oracle concurrently and waits for all of them. An oracle
// that errors or exceeds the per-call timeout contributes nothing. With no
// successful candidate the error is an *common.AllOraclesFailedError.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, oracles llm.Chain, cons llm.Constraints) (Result, error) {
	ctx, span := tracer.Start(ctx, "consensus.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.StringSlice("consensus.oracles", oracles.Names()),
		attribute.String("consensus.strategy", string(s.strategy)),
	)

	type reply struct {
		gen llm.Generation
		err error
	}
	replies := make([]reply, len(oracles))
	var g errgroup.Group
	for i, o := range oracles {
		g.Go(func() error {
			gen, err := llm.CallWithTimeout(ctx, o, prompt, cons, s.timeout)
			if err == nil && strings.TrimSpace(gen.Text) == "" {
				err = common.NewOracleUnavailable(o.Name(), errors.New("empty reply"))
			}
			replies[i] = reply{gen: gen, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	all := &common.AllOraclesFailedError{Failures: map[string]error{}}
	for i, r := range replies {
		name := oracles[i].Name()
		res.Calls++
		res.Cost += r.gen.CostEstimate
		if r.err != nil {
			res.Failed = append(res.Failed, llm.Attempt{Oracle: name, Err: r.err})
			res.Warnings = append(res.Warnings, fmt.Sprintf("consensus: oracle %s failed: %v", name, r.err))
			all.Failures[name] = r.err
			all.Order = append(all.Order, name)
			continue
		}
		res.Candidates = append(res.Candidates, Candidate{
			Oracle:     name,
			Text:       r.gen.Text,
			TokensUsed: r.gen.TokensUsed,
			Cost:       r.gen.CostEstimate,
		})
	}
	span.SetAttributes(attribute.Int("consensus.candidates", len(res.Candidates)))
	if len(res.Candidates) == 0 {
		s.logger.Error("consensus.all_failed", "job_id", common.JobIDFromContext(ctx), "oracles", all.Order)
		return res, all
	}

	res.Text, res.Source = Longest(res.Candidates)
	if s.strategy == constants.MergeSummarize && len(res.Candidates) > 1 {
		s.summarize(ctx, prompt, &res)
	}
	s.logger.Info("consensus.ok",
		"job_id", common.JobIDFromContext(ctx),
		"candidates", len(res.Candidates),
		"failed", len(res.Failed),
		"source", res.Source,
	)
	return res, nil
}

// summarize replaces the longest candidate with a merged one when the summarizer succeeds.
func (s *Synthesizer) summarize(ctx context.Context, prompt string, res *Result) {
	if s.summarizer == nil {
		res.Warnings = append(res.Warnings, "consensus: no summarizer configured; kept the longest candidate")
		return
	}
	texts := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		texts[i] = c.Text
	}
	res.Calls++
	gen, err := llm.CallWithTimeout(ctx, s.summarizer, llm.BuildSummarizePrompt(prompt, texts), llm.Constraints{}, s.timeout)
	res.Cost += gen.CostEstimate
	if err == nil && strings.TrimSpace(gen.Text) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("consensus: summarizer %s failed, kept the longest candidate: %v", s.summarizer.Name(), err))
		return
	}
	res.Text = gen.Text
	res.Source = s.summarizer.Name()
}

// Longest picks the candidate with the most words; ties go to the earliest.
func Longest(cands []Candidate) (text, oracle string) {
	best := -1
	for _, c := range cands {
		if n := textutil.WordCount(c.Text); n > best {
			best, text, oracle = n, c.Text, c.Oracle
		}
	}
	return text, oracle
}
