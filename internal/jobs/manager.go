// Package jobs tracks generation requests as pollable jobs and runs each one
// as a single background task.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/async"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/metrics"
	"github.com/joseph-ayodele/content-engine/internal/pipeline"
	"github.com/joseph-ayodele/content-engine/internal/repository"
)

// terminalWriteTimeout bounds the final status write of a job. It runs on a
// context detached from the pipeline deadline.
const terminalWriteTimeout = 10 * time.Second

// terminalWriteAttempts is how often a failed final status write is tried.
const terminalWriteAttempts = 3

var terminalRetryBackoff = 50 * time.Millisecond

// Runner executes the pipeline for one request.
type Runner interface {
	Run(ctx context.Context, req entity.GenerationRequest, progress pipeline.ProgressFunc) (*entity.PipelineResult, error)
	ConsensusEnabled(req entity.GenerationRequest) bool
}

type Config struct {
	// StageEstimate is the expected duration of one stage, used for completion estimates.
	StageEstimate time.Duration
	Concurrency   int
}

type Manager struct {
	store   repository.JobRepository
	queue   async.Queue
	runner  Runner
	cfg     Config
	known   func(string) bool
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Manager)

// WithOracleCheck rejects requests naming oracles for which known returns false.
func WithOracleCheck(known func(string) bool) Option {
	return func(m *Manager) { m.known = known }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store repository.JobRepository, queue async.Queue, runner Runner, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StageEstimate <= 0 {
		cfg.StageEstimate = 20 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	m := &Manager{
		store:  store,
		queue:  queue,
		runner: runner,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Submit validates sr, records a job and schedules its execution. It never waits
// for pipeline work. Validation failures create no job.
func (m *Manager) Submit(ctx context.Context, sr entity.SubmitRequest) (entity.SubmitResponse, error) {
	req, err := sr.Validate(m.known)
	if err != nil {
		m.logger.Info("jobs.submit.invalid", "error", err)
		return entity.SubmitResponse{}, err
	}

	id := uuid.NewString()
	lease, err := m.store.Create(ctx, entity.NewJob(id, m.now()))
	if err != nil {
		return entity.SubmitResponse{}, fmt.Errorf("create job: %w", err)
	}
	waiting := m.queue.Waiting()

	// Queued before the task exists, so the task only ever sees queued or later.
	if _, err := m.store.Update(ctx, lease, func(j *entity.Job) error {
		if err := j.Transition(constants.JobStatusQueued, m.now()); err != nil {
			return err
		}
		j.CurrentStage = constants.StageLabelQueued
		return nil
	}); err != nil {
		return entity.SubmitResponse{}, fmt.Errorf("queue job %s: %w", id, err)
	}

	task := async.Task{
		ID:          id,
		SubmittedAt: m.now(),
		Run:         func(tctx context.Context) error { return m.execute(tctx, lease, req) },
		Dropped: func(err error) {
			m.finish(context.Background(), lease, func(j *entity.Job) error {
				return j.Fail("job dropped before it started: "+err.Error(), m.now())
			})
			m.metrics.JobFinished(string(constants.JobStatusFailed))
		},
	}
	if err := m.queue.Enqueue(ctx, task); err != nil {
		m.finish(ctx, lease, func(j *entity.Job) error {
			return j.Fail("could not schedule job: "+err.Error(), m.now())
		})
		m.logger.Warn("jobs.submit.rejected", "job_id", id, "error", err)
		return entity.SubmitResponse{}, fmt.Errorf("%w: %v", common.ErrOverloaded, err)
	}

	m.metrics.JobSubmitted()
	m.logger.Info("jobs.submit.ok", "job_id", id, "topic", req.Topic, "waiting", waiting)
	return entity.SubmitResponse{
		JobID:                      id,
		Status:                     constants.JobStatusQueued,
		EstimatedCompletionSeconds: m.estimate(req, waiting),
	}, nil
}

// estimate is stages × per-stage estimate, scaled for consensus and the queue ahead.
func (m *Manager) estimate(req entity.GenerationRequest, waiting int) int {
	secs := m.cfg.StageEstimate.Seconds() * float64(len(constants.Stages))
	if m.runner != nil && m.runner.ConsensusEnabled(req) {
		secs *= 1.5
	}
	secs *= 1 + float64(waiting)/float64(m.cfg.Concurrency)
	return int(math.Ceil(secs))
}

// GetStatus returns a snapshot of the job.
func (m *Manager) GetStatus(ctx context.Context, id string) (*entity.Job, error) {
	return m.store.Get(ctx, id)
}

// List returns the most recent jobs first.
func (m *Manager) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	return m.store.List(ctx, limit)
}

// ReportProgress records the stage a running job reached. Only the lease holder
// may call it; a lower percent than already recorded is ignored.
func (m *Manager) ReportProgress(ctx context.Context, lease entity.Lease, percent int, stage string) error {
	_, err := m.store.Update(ctx, lease, func(j *entity.Job) error {
		return j.SetProgress(percent, stage, m.now())
	})
	return err
}

// execute is the single execution task of a job.
func (m *Manager) execute(ctx context.Context, lease entity.Lease, req entity.GenerationRequest) error {
	logger := m.logger.With("job_id", lease.JobID)
	ctx = common.WithJobID(ctx, lease.JobID)
	ctx = common.WithLogger(ctx, logger)

	m.metrics.JobStarted()
	if _, err := m.store.Update(ctx, lease, func(j *entity.Job) error {
		return j.Transition(constants.JobStatusProcessing, m.now())
	}); err != nil {
		m.finish(ctx, lease, func(j *entity.Job) error { return j.Fail("could not start job: "+err.Error(), m.now()) })
		m.metrics.JobFinished(string(constants.JobStatusFailed))
		return fmt.Errorf("start job: %w", err)
	}
	logger.Info("jobs.execute.start")

	start := time.Now()
	res, err := m.runner.Run(ctx, req, func(pctx context.Context, percent int, stage string) {
		if perr := m.ReportProgress(pctx, lease, percent, stage); perr != nil {
			logger.Warn("jobs.progress.failed", "stage", stage, "error", perr)
		}
	})
	if err == nil && res == nil {
		err = errors.New("pipeline returned no result")
	}

	if err != nil {
		m.finish(ctx, lease, func(j *entity.Job) error { return j.Fail(err.Error(), m.now()) })
		m.metrics.JobFinished(string(constants.JobStatusFailed))
		logger.Error("jobs.execute.failed", "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}

	m.finish(ctx, lease, func(j *entity.Job) error {
		j.AppendWarnings(res.Warnings...)
		return j.Complete(res, m.now())
	})
	m.metrics.JobFinished(string(constants.JobStatusCompleted))
	logger.Info("jobs.execute.ok",
		"elapsed_ms", time.Since(start).Milliseconds(),
		"warnings", len(res.Warnings),
		"oracle_calls", res.TotalOracleCalls,
	)
	return nil
}

// finish writes a terminal state even when ctx is already past its deadline.
// Store errors are retried with backoff; lease and transition errors are not.
func (m *Manager) finish(ctx context.Context, lease entity.Lease, mutate func(*entity.Job) error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	backoff := terminalRetryBackoff
	var err error
retry:
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		if _, err = m.store.Update(wctx, lease, mutate); err == nil {
			return nil
		}
		if permanentWriteError(err) || attempt == terminalWriteAttempts {
			break retry
		}
		m.logger.Warn("jobs.finish.retry", "job_id", lease.JobID, "attempt", attempt, "error", err)
		t := time.NewTimer(backoff)
		select {
		case <-wctx.Done():
			t.Stop()
			err = errors.Join(err, wctx.Err())
			break retry
		case <-t.C:
		}
		backoff *= 2
	}
	m.logger.Error("jobs.finish.failed", "job_id", lease.JobID, "error", err)
	return err
}

func permanentWriteError(err error) bool {
	return errors.Is(err, common.ErrLeaseMismatch) ||
		errors.Is(err, common.ErrInvalidTransition) ||
		errors.Is(err, common.ErrNotFound)
}
