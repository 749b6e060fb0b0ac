package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/app"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

type generateOptions struct {
	topic       string
	keywords    []string
	tone        string
	length      string
	targetWords int
	audience    string
	oracles     []string
	consensus   bool
	webSearch   bool
	noArchive   bool
	poll        time.Duration
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation job in-process and print the finished job as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.topic, "topic", "", "article topic")
	f.StringSliceVarP(&opts.keywords, "keyword", "k", nil, "target keyword (repeatable; the first is primary)")
	f.StringVar(&opts.tone, "tone", "", "professional|conversational|academic|persuasive|friendly")
	f.StringVar(&opts.length, "length", "", "short|medium|long")
	f.IntVar(&opts.targetWords, "target-words", 0, "explicit word target (overrides --length)")
	f.StringVar(&opts.audience, "audience", "", "intended audience")
	f.StringSliceVar(&opts.oracles, "oracle", nil, "explicit oracle fallback chain")
	f.BoolVar(&opts.consensus, "consensus", false, "draft with several oracles and merge")
	f.BoolVar(&opts.webSearch, "web-search", false, "research and cite web sources")
	f.BoolVar(&opts.noArchive, "no-archive", false, "do not archive the article")
	f.DurationVar(&opts.poll, "poll", 500*time.Millisecond, "status poll interval")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	// One job, one process: nothing outlives the command.
	cfg.Database.Driver = string(constants.StoreMemory)
	cfg.Server.SubmitRateLimit = 0
	cfg.Corpus.Watch = false
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, root.logger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(context.WithoutCancel(ctx)) }()

	archive := !opts.noArchive
	req := entity.SubmitRequest{
		Topic:       opts.topic,
		Keywords:    opts.keywords,
		Tone:        opts.tone,
		Length:      opts.length,
		TargetWords: opts.targetWords,
		Audience:    opts.audience,
		Oracles:     opts.oracles,
		Features: &entity.FeatureFlags{
			Consensus: &opts.consensus,
			WebSearch: &opts.webSearch,
			Archive:   &archive,
		},
	}
	resp, err := a.Jobs.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "job %s queued (estimated %ds)\n", resp.JobID, resp.EstimatedCompletionSeconds)

	job, err := waitForJob(ctx, a, resp.JobID, opts.poll, func(j *entity.Job) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %3d%% %s\n", j.ProgressPercent, j.CurrentStage)
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return err
	}
	if job.Status == constants.JobStatusFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, deref(job.Error))
	}
	return nil
}

// waitForJob polls until the job is terminal, reporting each new stage.
func waitForJob(ctx context.Context, a *app.App, id string, every time.Duration, onStage func(*entity.Job)) (*entity.Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	lastStage := ""
	for {
		job, err := a.Jobs.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.CurrentStage != lastStage {
			lastStage = job.CurrentStage
			onStage(job)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
