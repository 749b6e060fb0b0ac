// Package app wires the configured collaborators into a runnable content engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/artifacts"
	"github.com/joseph-ayodele/content-engine/internal/async"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/consensus"
	"github.com/joseph-ayodele/content-engine/internal/enhance"
	"github.com/joseph-ayodele/content-engine/internal/enrich"
	"github.com/joseph-ayodele/content-engine/internal/interlink"
	"github.com/joseph-ayodele/content-engine/internal/jobs"
	"github.com/joseph-ayodele/content-engine/internal/llm"
	"github.com/joseph-ayodele/content-engine/internal/llm/providers"
	"github.com/joseph-ayodele/content-engine/internal/metrics"
	"github.com/joseph-ayodele/content-engine/internal/pipeline"
	"github.com/joseph-ayodele/content-engine/internal/repository"
	"github.com/joseph-ayodele/content-engine/internal/server"
)

// App holds every long-lived component of one process.
type App struct {
	Config       *common.Config
	Stores       *repository.Stores
	Registry     *llm.Registry
	Prometheus   *prometheus.Registry
	Metrics      *metrics.Metrics
	Interlinks   *interlink.Service
	Orchestrator *pipeline.Orchestrator
	Queue        *async.ProcessorQueue
	Jobs         *jobs.Manager

	logger *slog.Logger
	cancel context.CancelFunc
}

// Option customises Build.
type Option func(*buildOptions)

type buildOptions struct {
	registry *llm.Registry
	search   enrich.SearchOracle
}

// WithRegistry uses reg instead of building oracles from configuration.
func WithRegistry(reg *llm.Registry) Option {
	return func(o *buildOptions) { o.registry = reg }
}

// WithSearch overrides the configured search oracle.
func WithSearch(s enrich.SearchOracle) Option {
	return func(o *buildOptions) { o.search = s }
}

// Build opens the stores and assembles the pipeline, queue and job manager.
// Background work (corpus watching) lives until Shutdown.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &App{Config: cfg, logger: logger, cancel: cancel}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	a.Prometheus = prometheus.NewRegistry()
	a.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Prometheus)

	withRedis := cfg.Server.SubmitRateLimit > 0 || cfg.Redis.CacheInsight
	stores, err := repository.OpenStores(ctx, cfg, withRedis, logger)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	a.Stores = stores

	a.Registry = bo.registry
	if a.Registry == nil {
		if a.Registry, err = providers.BuildRegistry(cfg.LLM, a.Metrics, logger); err != nil {
			return nil, fmt.Errorf("build oracles: %w", err)
		}
	}

	corpus, err := a.corpus(bg)
	if err != nil {
		return nil, err
	}
	a.Interlinks = interlink.NewService(corpus, cfg.Pipeline.MaxInterlinks, logger)

	deps, err := a.pipelineDeps(ctx, bo)
	if err != nil {
		return nil, err
	}
	a.Orchestrator, err = pipeline.NewOrchestrator(pipeline.Config{
		StageTimeout:     cfg.Pipeline.StageTimeout,
		PipelineTimeout:  cfg.Pipeline.PipelineTimeout,
		MaxInterlinks:    cfg.Pipeline.MaxInterlinks,
		SearchDepth:      cfg.Search.Depth,
		DefaultChain:     cfg.LLM.DefaultChain,
		ConsensusOracles: cfg.LLM.Consensus,
	}, deps, logger)
	if err != nil {
		return nil, err
	}

	queueOpts := []async.Option{
		async.WithWorkers(cfg.Jobs.Concurrency),
		async.WithQueueSize(cfg.Jobs.QueueSize),
	}
	if cfg.Pipeline.PipelineTimeout > 0 {
		// The pipeline enforces its own deadline; the queue only catches runaways.
		queueOpts = append(queueOpts, async.WithProcessTimeout(cfg.Pipeline.PipelineTimeout+time.Minute))
	}
	a.Queue = async.NewProcessorQueue(logger, queueOpts...)

	a.Jobs = jobs.NewManager(stores.Jobs, a.Queue, a.Orchestrator, jobs.Config{
		StageEstimate: cfg.Jobs.StageEstimate,
		Concurrency:   cfg.Jobs.Concurrency,
	}, logger, jobs.WithOracleCheck(a.Registry.Has), jobs.WithMetrics(a.Metrics))

	ok = true
	logger.Info("app.ready",
		"job_store", cfg.Database.Driver,
		"oracles", a.Registry.Names(),
		"workers", a.Queue.Workers(),
	)
	return a, nil
}

func (a *App) pipelineDeps(ctx context.Context, bo buildOptions) (pipeline.Deps, error) {
	cfg := a.Config
	deps := pipeline.Deps{
		Registry:   a.Registry,
		Enhancer:   enhance.NewEnhancer(cfg.Pipeline.ReadabilityThreshold, cfg.Pipeline.StageTimeout, a.logger),
		Length:     enrich.PresetOptimizer{},
		Interlinks: a.Interlinks,
		Metrics:    a.Metrics,
	}

	strategy, ok := constants.ParseMergeStrategy(cfg.LLM.MergeStrategy)
	if !ok {
		return deps, fmt.Errorf("%w: unknown merge strategy %q", common.ErrInvalidInput, cfg.LLM.MergeStrategy)
	}
	synthOpts := []consensus.Option{consensus.WithStrategy(strategy), consensus.WithTimeout(cfg.Pipeline.StageTimeout)}
	if cfg.LLM.Summarizer != "" {
		o, found := a.Registry.Get(cfg.LLM.Summarizer)
		if !found {
			return deps, fmt.Errorf("%w: unknown summarizer oracle %q", common.ErrInvalidInput, cfg.LLM.Summarizer)
		}
		synthOpts = append(synthOpts, consensus.WithSummarizer(o))
	}
	deps.Synthesizer = consensus.NewSynthesizer(a.logger, synthOpts...)

	insightChain, err := a.insightChain()
	if err != nil {
		return deps, err
	}
	if len(insightChain) > 0 {
		var insight enrich.KeywordInsight = enrich.NewOracleInsight(insightChain, cfg.LLM.OracleTimeout, a.logger)
		if cfg.Redis.CacheInsight && a.Stores.Redis != nil {
			insight = enrich.NewCachedInsight(insight, a.Stores.Redis, cfg.Redis.CacheTTL, a.logger)
		}
		deps.Insight = insight
	}

	deps.Search = bo.search
	if deps.Search == nil && cfg.Search.Endpoint != "" {
		deps.Search = enrich.NewHTTPSearch(cfg.Search.Endpoint, cfg.Search.APIKey, cfg.Search.Timeout, a.logger)
	}

	archiver, err := artifacts.New(ctx, cfg.Artifacts, a.logger)
	if err != nil {
		return deps, fmt.Errorf("artifacts: %w", err)
	}
	if archiver != nil {
		deps.Archiver = archiver
	}
	return deps, nil
}

// insightChain is the configured insight oracle, else the default chain.
func (a *App) insightChain() (llm.Chain, error) {
	cfg := a.Config.LLM
	switch {
	case cfg.InsightOracle != "":
		return a.Registry.Chain([]string{cfg.InsightOracle})
	case len(cfg.DefaultChain) > 0:
		return a.Registry.Chain(cfg.DefaultChain)
	default:
		return a.Registry.Chain(a.Registry.Names())
	}
}

// corpus picks the default interlinking corpus: the SQL content table, a file, or none.
func (a *App) corpus(ctx context.Context) (interlink.Corpus, error) {
	cc := a.Config.Corpus
	switch {
	case cc.FromStore:
		if a.Stores.Content == nil {
			return nil, fmt.Errorf("%w: CORPUS_FROM_STORE needs a SQL job store", common.ErrInvalidInput)
		}
		return a.Stores.Content, nil
	case cc.File != "":
		fc, err := interlink.NewFileCorpus(cc.File, a.logger)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		if cc.Watch {
			if err := fc.Watch(ctx, 250*time.Millisecond); err != nil {
				return nil, fmt.Errorf("watch corpus: %w", err)
			}
		}
		return fc, nil
	}
	return nil, nil
}

// Health returns the dependency checks served on /healthz.
func (a *App) Health() map[string]server.HealthFunc {
	checks := map[string]server.HealthFunc{}
	if db := a.Stores.DB; db != nil {
		checks["database"] = func(ctx context.Context) error {
			return db.HealthCheck(ctx, 2*time.Second, a.logger)
		}
	}
	if rdb := a.Stores.Redis; rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// Shutdown drains the job queue, then releases the stores.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Queue != nil {
		if qerr := a.Queue.Shutdown(ctx); qerr != nil {
			err = fmt.Errorf("drain queue: %w", qerr)
		}
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Stores != nil {
		a.Stores.Close()
	}
}
