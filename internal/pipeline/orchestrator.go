// Package pipeline runs the four generation stages (research, draft,
// enhancement, polish) for one request.
//
// Stages run strictly in order. Enrichment and secondary oracle failures become
// warnings on the stage that hit them; only a stage's primary generation call is
// fatal. No stage starts after the pipeline deadline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/consensus"
	"github.com/joseph-ayodele/content-engine/internal/enhance"
	"github.com/joseph-ayodele/content-engine/internal/enrich"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/metrics"
)

var tracer = otel.Tracer("content-engine/pipeline")

// ProgressFunc is told when a stage starts. It must not block for long.
type ProgressFunc func(ctx context.Context, percent int, stage string)

// Archiver stores a finished result and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, jobID string, result *entity.PipelineResult) (string, error)
}

// Config holds the orchestrator limits.
type Config struct {
	// StageTimeout bounds each primary oracle call.
	StageTimeout time.Duration
	// PipelineTimeout is the deadline of a whole run; zero disables it.
	PipelineTimeout time.Duration
	MaxInterlinks   int
	SearchDepth     int
	// DefaultChain is the fallback order used when a request names no oracles.
	// Empty means registration order.
	DefaultChain []string
	// ConsensusOracles are fanned out to when the consensus feature is on.
	ConsensusOracles []string
}

// Deps are the collaborators of the orchestrator. Only Registry is required.
type Deps struct {
	Registry    *llm.Registry
	Synthesizer *consensus.Synthesizer
	Enhancer    *enhance.Enhancer
	Insight     enrich.KeywordInsight
	Search      enrich.SearchOracle
	Length      enrich.LengthOptimizer
	Interlinks  *interlink.Service
	Archiver    Archiver
	Metrics     *metrics.Metrics
}

type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: pipeline needs an oracle registry", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = consensus.NewSynthesizer(logger, consensus.WithTimeout(cfg.StageTimeout))
	}
	if deps.Length == nil {
		deps.Length = enrich.PresetOptimizer{}
	}
	if cfg.SearchDepth <= 0 {
		cfg.SearchDepth = 5
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}, nil
}

// ConsensusEnabled reports whether a request with the consensus feature will fan out.
func (o *Orchestrator) ConsensusEnabled(req entity.GenerationRequest) bool {
	return req.Features.Consensus && len(o.cfg.ConsensusOracles) >= 2
}

// state is what one run carries from stage to stage.
type state struct {
	req      entity.GenerationRequest
	chain    llm.Chain
	result   *entity.PipelineResult
	related  []string
	intent   constants.SearchIntent
	sources  []entity.SearchResult
	outline  string
	title    string
	text     string
	deadline time.Time
}

// stageRecord collects what a stage reports besides its output.
type stageRecord struct {
	name     constants.Stage
	warnings []string
	calls    int
	cost     float64
}

func (r *stageRecord) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

func (r *stageRecord) warnf(format string, args ...any) {
	r.warn(fmt.Sprintf(format, args...))
}

func (r *stageRecord) usage(calls int, cost float64) {
	r.calls += calls
	r.cost += cost
}

// chainFailures turns the oracles skipped before a chain success into warnings.
func (r *stageRecord) chainFailures(failed []llm.Attempt) {
	for _, a := range failed {
		r.warnf("%s: oracle %s failed, fell back to the next oracle: %v", r.name, a.Oracle, a.Err)
	}
}

type stageFunc func(ctx context.Context, st *state, rec *stageRecord) (string, error)

// Run executes every stage for req. progress may be nil.
func (o *Orchestrator) Run(ctx context.Context, req entity.GenerationRequest, progress ProgressFunc) (*entity.PipelineResult, error) {
	if progress == nil {
		progress = func(context.Context, int, string) {}
	}
	logger := common.LoggerFromContext(ctx, o.logger)

	chain, err := o.resolveChain(req)
	if err != nil {
		return nil, err
	}

	st := &state{
		req:   req,
		chain: chain,
		result: &entity.PipelineResult{
			StageResults: make([]entity.StageResult, 0, len(constants.Stages)),
			Citations:    []entity.Citation{},
			Warnings:     []string{},
		},
	}
	if o.cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.PipelineTimeout)
		defer cancel()
		st.deadline, _ = ctx.Deadline()
	}

	ctx = enrich.WithInsightScope(ctx)
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.topic", req.Topic),
		attribute.StringSlice("pipeline.chain", chain.Names()),
	)

	stages := []struct {
		name constants.Stage
		fn   stageFunc
	}{
		{constants.StageResearch, o.research},
		{constants.StageDraft, o.draft},
		{constants.StageEnhancement, o.enhance},
		{constants.StagePolish, o.polish},
	}
	for _, s := range stages {
		if err := o.checkDeadline(ctx, st, "before "+string(s.name)); err != nil {
			return o.fail(span, logger, err)
		}
		progress(ctx, s.name.StartPercent(), string(s.name))
		if err := o.runStage(ctx, st, s.name, s.fn, logger); err != nil {
			return o.fail(span, logger, err)
		}
	}

	if err := o.checkDeadline(ctx, st, "before finishing"); err != nil {
		return o.fail(span, logger, err)
	}
	progress(ctx, constants.ProgressFinishing, constants.StageLabelFinishing)
	o.archive(ctx, st, logger)

	res := st.result
	span.SetAttributes(
		attribute.Int("pipeline.oracle_calls", res.TotalOracleCalls),
		attribute.Int("pipeline.warnings", len(res.Warnings)),
	)
	logger.Info("pipeline.done",
		"words", res.WordCount,
		"oracle_calls", res.TotalOracleCalls,
		"cost_estimate", res.TotalCostEstimate,
		"warnings", len(res.Warnings),
	)
	return res, nil
}

func (o *Orchestrator) fail(span trace.Span, logger *slog.Logger, err error) (*entity.PipelineResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("pipeline.failed", "error", err)
	return nil, err
}

func (o *Orchestrator) resolveChain(req entity.GenerationRequest) (llm.Chain, error) {
	names := req.Oracles
	if len(names) == 0 {
		names = o.cfg.DefaultChain
	}
	if len(names) == 0 {
		names = o.deps.Registry.Names()
	}
	if len(names) == 0 {
		return nil, &common.AllOraclesFailedError{Failures: map[string]error{}}
	}
	return o.deps.Registry.Chain(names)
}

// checkDeadline refuses to start more work once the pipeline deadline passed.
func (o *Orchestrator) checkDeadline(ctx context.Context, st *state, where string) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &common.TimeoutError{Op: "pipeline " + where, Limit: o.cfg.PipelineTimeout}
		}
		return fmt.Errorf("pipeline cancelled %s: %w", where, err)
	}
	if !st.deadline.IsZero() && !time.Now().Before(st.deadline) {
		return &common.TimeoutError{Op: "pipeline " + where, Limit: o.cfg.PipelineTimeout}
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, st *state, name constants.Stage, fn stageFunc, logger *slog.Logger) error {
	ctx, span := tracer.Start(ctx, "pipeline.stage."+string(name))
	defer span.End()

	rec := &stageRecord{name: name}
	start := time.Now()
	out, err := fn(ctx, st, rec)
	elapsed := time.Since(start)
	o.deps.Metrics.ObserveStage(string(name), err == nil, elapsed)

	sr := entity.StageResult{
		StageName:       name,
		Succeeded:       err == nil,
		Warnings:        rec.warnings,
		OracleCallsMade: rec.calls,
		DurationMS:      elapsed.Milliseconds(),
	}
	if sr.Warnings == nil {
		sr.Warnings = []string{}
	}
	if err == nil {
		sr.OutputText = &out
	}
	st.result.StageResults = append(st.result.StageResults, sr)
	st.result.Warnings = append(st.result.Warnings, rec.warnings...)
	st.result.TotalOracleCalls += rec.calls
	st.result.TotalCostEstimate += rec.cost

	span.SetAttributes(
		attribute.Int("stage.oracle_calls", rec.calls),
		attribute.Int("stage.warnings", len(rec.warnings)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) && !errors.Is(err, common.ErrTimeout) {
			err = fmt.Errorf("%w: %v", &common.TimeoutError{Op: "pipeline " + string(name) + " stage", Limit: o.cfg.PipelineTimeout}, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("pipeline.stage.failed", "stage", name, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return fmt.Errorf("%s stage: %w", name, err)
	}
	logger.Info("pipeline.stage.ok",
		"stage", name,
		"elapsed_ms", elapsed.Milliseconds(),
		"oracle_calls", rec.calls,
		"warnings", len(rec.warnings),
	)
	return nil
}

// generate runs the primary call of a stage over the run's fallback chain.
func (o *Orchestrator) generate(ctx context.Context, st *state, rec *stageRecord, prompt string) (string, error) {
	out, err := st.chain.Generate(ctx, prompt, llm.Constraints{}, o.cfg.StageTimeout, common.LoggerFromContext(ctx, o.logger))
	rec.usage(out.Calls, out.Cost)
	if err != nil {
		return "", err
	}
	rec.chainFailures(out.Failed)
	return out.Generation.Text, nil
}

func (o *Orchestrator) archive(ctx context.Context, st *state, logger *slog.Logger) {
	if !st.req.Features.Archive || o.deps.Archiver == nil {
		return
	}
	jobID := common.JobIDFromContext(ctx)
	if jobID == "" {
		jobID = "adhoc-" + time.Now().UTC().Format("20060102T150405.000000000")
	}
	uri, err := o.deps.Archiver.Archive(ctx, jobID, st.result)
	if err != nil {
		msg := fmt.Sprintf("archive unavailable: %v", err)
		st.result.Warnings = append(st.result.Warnings, msg)
		logger.Warn("pipeline.archive.failed", "error", err)
		return
	}
	st.result.ArtifactURI = uri
	logger.Info("pipeline.archive.ok", "uri", uri)
}
