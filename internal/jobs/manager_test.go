package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/async"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/metrics"
	"github.com/joseph-ayodele/content-engine/internal/pipeline"
	"github.com/joseph-ayodele/content-engine/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner reports every stage, optionally waiting on gate, then succeeds or fails.
type fakeRunner struct {
	gate      chan struct{}
	err       error
	consensus bool
}

func (f *fakeRunner) ConsensusEnabled(req entity.GenerationRequest) bool {
	return f.consensus && req.Features.Consensus
}

func (f *fakeRunner) Run(ctx context.Context, _ entity.GenerationRequest, progress pipeline.ProgressFunc) (*entity.PipelineResult, error) {
	for _, s := range constants.Stages {
		progress(ctx, s.StartPercent(), string(s))
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	progress(ctx, constants.ProgressFinishing, constants.StageLabelFinishing)
	return &entity.PipelineResult{
		FinalText: "Goroutines are cheap. Channels connect them.",
		Warnings:  []string{"keyword insight unavailable: down"},
	}, nil
}

func validRequest() entity.SubmitRequest {
	return entity.SubmitRequest{Topic: "Go concurrency", Keywords: []string{"goroutines"}}
}

func newManager(t *testing.T, runner Runner, opts ...Option) (*Manager, *repository.MemoryJobRepository) {
	t.Helper()
	store := repository.NewMemoryJobRepository(quietLogger())
	queue := async.NewProcessorQueue(quietLogger(), async.WithWorkers(2))
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })
	return NewManager(store, queue, runner, Config{StageEstimate: 10 * time.Second, Concurrency: 2}, quietLogger(), opts...), store
}

func waitTerminal(t *testing.T, m *Manager, id string) *entity.Job {
	t.Helper()
	var job *entity.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = m.GetStatus(context.Background(), id)
		require.NoError(t, err)
		return job.Status.IsTerminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestSubmitAndComplete(t *testing.T) {
	gate := make(chan struct{})
	m, _ := newManager(t, &fakeRunner{gate: gate})

	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, constants.JobStatusQueued, resp.Status)
	assert.Equal(t, 40, resp.EstimatedCompletionSeconds)

	job, err := m.GetStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Contains(t, []constants.JobStatus{constants.JobStatusPending, constants.JobStatusQueued, constants.JobStatusProcessing}, job.Status)
	assert.Nil(t, job.Result)
	assert.Nil(t, job.Error)

	close(gate)
	job = waitTerminal(t, m, resp.JobID)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.NotEmpty(t, job.Result.FinalText)
	assert.Nil(t, job.Error)
	assert.Equal(t, constants.ProgressDone, job.ProgressPercent)
	assert.Equal(t, constants.StageLabelCompleted, job.CurrentStage)
	assert.Equal(t, []string{"keyword insight unavailable: down"}, job.Warnings)
}

func TestStatusAndProgressNeverGoBack(t *testing.T) {
	gate := make(chan struct{})
	m, _ := newManager(t, &fakeRunner{gate: gate})
	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		statuses []constants.JobStatus
		percents []int
	)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			job, err := m.GetStatus(context.Background(), resp.JobID)
			if err == nil {
				mu.Lock()
				statuses = append(statuses, job.Status)
				percents = append(percents, job.ProgressPercent)
				mu.Unlock()
			}
			time.Sleep(time.Millisecond)
		}
	}()
	for range constants.Stages {
		time.Sleep(5 * time.Millisecond)
		gate <- struct{}{}
	}
	job := waitTerminal(t, m, resp.JobID)
	close(stop)
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(statuses); i++ {
		assert.GreaterOrEqual(t, statuses[i].Rank(), statuses[i-1].Rank(), "status went %s -> %s", statuses[i-1], statuses[i])
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
}

func TestFailedJobHasErrorOnly(t *testing.T) {
	failure := &common.AllOraclesFailedError{
		Failures: map[string]error{"a": errors.New("503"), "b": errors.New("503")},
		Order:    []string{"a", "b"},
	}
	m, _ := newManager(t, &fakeRunner{err: failure})

	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	job := waitTerminal(t, m, resp.JobID)

	assert.Equal(t, constants.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "all oracles failed")
	assert.Nil(t, job.Result)
	assert.Equal(t, constants.StageLabelFailed, job.CurrentStage)
	assert.Equal(t, constants.StagePolish.StartPercent(), job.ProgressPercent, "failed jobs keep their last progress")
}

func TestTimedOutJobIsRecordedAsFailed(t *testing.T) {
	store := repository.NewMemoryJobRepository(quietLogger())
	queue := async.NewProcessorQueue(quietLogger(), async.WithWorkers(1), async.WithProcessTimeout(20*time.Millisecond))
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })
	m := NewManager(store, queue, &fakeRunner{gate: make(chan struct{})}, Config{}, quietLogger())

	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	job := waitTerminal(t, m, resp.JobID)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "deadline exceeded")
}

func TestSubmitValidation(t *testing.T) {
	m, store := newManager(t, &fakeRunner{}, WithOracleCheck(func(name string) bool { return name == "openai" }))

	_, err := m.Submit(context.Background(), entity.SubmitRequest{Topic: "", Keywords: nil})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)

	bad := validRequest()
	bad.Oracles = []string{"ghost"}
	_, err = m.Submit(context.Background(), bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	jobs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected submissions create no job")
}

func TestGetStatusUnknown(t *testing.T) {
	m, _ := newManager(t, &fakeRunner{})
	_, err := m.GetStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSubmitWhenQueueClosed(t *testing.T) {
	store := repository.NewMemoryJobRepository(quietLogger())
	queue := async.NewProcessorQueue(quietLogger())
	require.NoError(t, queue.Shutdown(context.Background()))
	m := NewManager(store, queue, &fakeRunner{}, Config{}, quietLogger())

	_, err := m.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOverloaded)

	jobs, err := m.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, constants.JobStatusFailed, jobs[0].Status)
}

func TestReportProgressNeedsLease(t *testing.T) {
	m, store := newManager(t, &fakeRunner{})
	lease, err := store.Create(context.Background(), entity.NewJob("manual", time.Now()))
	require.NoError(t, err)
	_, err = store.Update(context.Background(), lease, func(j *entity.Job) error {
		return j.Transition(constants.JobStatusProcessing, time.Now())
	})
	require.NoError(t, err)

	require.NoError(t, m.ReportProgress(context.Background(), lease, 55, "enhancement"))
	require.NoError(t, m.ReportProgress(context.Background(), lease, 25, "draft"))
	job, err := m.GetStatus(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 55, job.ProgressPercent)

	err = m.ReportProgress(context.Background(), entity.Lease{JobID: "manual", Token: "forged"}, 80, "polish")
	assert.ErrorIs(t, err, common.ErrLeaseMismatch)
}

func TestEstimateScalesWithConsensusAndQueue(t *testing.T) {
	m := NewManager(nil, nil, &fakeRunner{consensus: true}, Config{StageEstimate: 10 * time.Second, Concurrency: 4}, quietLogger())
	req := entity.GenerationRequest{Features: entity.Features{Consensus: true}}
	assert.Equal(t, 60, m.estimate(req, 0))
	assert.Equal(t, 90, m.estimate(req, 2))
	assert.Equal(t, 40, m.estimate(entity.GenerationRequest{}, 0))
}

func TestMetricsCountJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, _ := newManager(t, &fakeRunner{}, WithMetrics(metrics.New(reg)))
	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	waitTerminal(t, m, resp.JobID)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "content_engine_jobs_submitted_total")
}

// flakyStore fails the first terminal writes with a transient error.
type flakyStore struct {
	repository.JobRepository
	failures atomic.Int32
	attempts atomic.Int32
}

func (s *flakyStore) Update(ctx context.Context, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error) {
	return s.JobRepository.Update(ctx, lease, func(j *entity.Job) error {
		if err := mutate(j); err != nil {
			return err
		}
		if j.Status.IsTerminal() {
			s.attempts.Add(1)
			if s.failures.Add(-1) >= 0 {
				return errors.New("connection reset by peer")
			}
		}
		return nil
	})
}

func TestTerminalWriteIsRetried(t *testing.T) {
	terminalRetryBackoff = time.Millisecond
	t.Cleanup(func() { terminalRetryBackoff = 50 * time.Millisecond })

	store := &flakyStore{JobRepository: repository.NewMemoryJobRepository(quietLogger())}
	store.failures.Store(2)
	queue := async.NewProcessorQueue(quietLogger(), async.WithWorkers(1))
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })
	m := NewManager(store, queue, &fakeRunner{}, Config{}, quietLogger())

	resp, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	job := waitTerminal(t, m, resp.JobID)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, int32(3), store.attempts.Load())
}

func TestTerminalWriteGivesUpOnLeaseMismatch(t *testing.T) {
	store := &flakyStore{JobRepository: repository.NewMemoryJobRepository(quietLogger())}
	m := NewManager(store, nil, &fakeRunner{}, Config{}, quietLogger())
	_, err := store.Create(context.Background(), entity.NewJob("j1", time.Now()))
	require.NoError(t, err)

	err = m.finish(context.Background(), entity.Lease{JobID: "j1", Token: "forged"}, func(j *entity.Job) error {
		return j.Fail("boom", time.Now())
	})
	assert.ErrorIs(t, err, common.ErrLeaseMismatch)
}

func TestForcedShutdownFailsWaitingJobs(t *testing.T) {
	store := repository.NewMemoryJobRepository(quietLogger())
	queue := async.NewProcessorQueue(quietLogger(), async.WithWorkers(1))
	m := NewManager(store, queue, &fakeRunner{gate: make(chan struct{})}, Config{}, quietLogger())

	first, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := m.GetStatus(context.Background(), first.JobID)
		return err == nil && job.Status == constants.JobStatusProcessing
	}, time.Second, 5*time.Millisecond)
	second, err := m.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, queue.Shutdown(ctx), context.DeadlineExceeded)

	job, err := m.GetStatus(context.Background(), second.JobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "dropped before it started")

	job = waitTerminal(t, m, first.JobID)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
}
