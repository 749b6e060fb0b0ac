package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

func openSQLiteForTest(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "content.db") + "?_pragma=busy_timeout(5000)"
	db, err := Open(context.Background(), Config{Driver: constants.StoreSQLite, DSN: dsn}, discardLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Migrate(context.Background()), "migrations are idempotent")
	t.Cleanup(func() { db.Close(discardLogger()) })
	return db
}

func repositories(t *testing.T) map[string]JobRepository {
	repos := map[string]JobRepository{
		"memory": NewMemoryJobRepository(discardLogger()),
		"sqlite": NewSQLJobRepository(openSQLiteForTest(t), discardLogger()),
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb, err := NewRedisClient(context.Background(), common.RedisConfig{Addr: addr})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		repos["redis"] = NewRedisJobRepository(rdb, time.Minute, discardLogger())
	}
	return repos
}

func TestJobRepositoryContract(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)
			job := entity.NewJob(uuid.NewString(), now)

			lease, err := repo.Create(ctx, job)
			require.NoError(t, err)
			assert.Equal(t, job.ID, lease.JobID)
			assert.NotEmpty(t, lease.Token)

			_, err = repo.Create(ctx, job)
			assert.Error(t, err, "duplicate ids are rejected")

			got, err := repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusPending, got.Status)
			assert.True(t, now.Equal(got.CreatedAt))

			updated, err := repo.Update(ctx, lease, func(j *entity.Job) error {
				return j.Transition(constants.JobStatusQueued, now.Add(time.Second))
			})
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusQueued, updated.Status)

			_, err = repo.Update(ctx, entity.Lease{JobID: job.ID, Token: "intruder"}, func(j *entity.Job) error {
				return j.Fail("hijacked", now)
			})
			assert.ErrorIs(t, err, common.ErrLeaseMismatch)

			_, err = repo.Update(ctx, lease, func(j *entity.Job) error {
				return j.Transition(constants.JobStatusPending, now)
			})
			assert.ErrorIs(t, err, common.ErrInvalidTransition)

			got, err = repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusQueued, got.Status, "failed updates leave the job untouched")
			assert.Nil(t, got.Error)

			text := "final"
			_, err = repo.Update(ctx, lease, func(j *entity.Job) error {
				if err := j.Transition(constants.JobStatusProcessing, now); err != nil {
					return err
				}
				j.AppendWarnings("w1")
				return j.Complete(&entity.PipelineResult{FinalText: text, Warnings: []string{"w1"}}, now)
			})
			require.NoError(t, err)
			got, err = repo.Get(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, constants.JobStatusCompleted, got.Status)
			require.NotNil(t, got.Result)
			assert.Equal(t, "final", got.Result.FinalText)
			assert.Equal(t, []string{"w1"}, got.Warnings)

			_, err = repo.Get(ctx, "missing-"+uuid.NewString())
			assert.ErrorIs(t, err, common.ErrNotFound)
			_, err = repo.Update(ctx, entity.Lease{JobID: "missing-" + uuid.NewString(), Token: "x"}, func(*entity.Job) error { return nil })
			assert.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestJobRepositorySnapshotsAreCopies(t *testing.T) {
	repo := NewMemoryJobRepository(discardLogger())
	ctx := context.Background()
	job := entity.NewJob("copy", time.Now())
	_, err := repo.Create(ctx, job)
	require.NoError(t, err)

	job.Status = constants.JobStatusFailed
	got, err := repo.Get(ctx, "copy")
	require.NoError(t, err)
	got.AppendWarnings("mutated")

	again, err := repo.Get(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, again.Status)
	assert.Empty(t, again.Warnings)
}

func TestJobRepositoryList(t *testing.T) {
	for name, repo := range repositories(t) {
		if name == "redis" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := range 5 {
				_, err := repo.Create(ctx, entity.NewJob(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}
			jobs, err := repo.List(ctx, 3)
			require.NoError(t, err)
			require.Len(t, jobs, 3)
			assert.Equal(t, "job-4", jobs[0].ID)
			assert.Equal(t, "job-3", jobs[1].ID)
			assert.Equal(t, "job-2", jobs[2].ID)

			all, err := repo.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestMemoryJobRepositoryConcurrentReaders(t *testing.T) {
	repo := NewMemoryJobRepository(discardLogger())
	ctx := context.Background()
	lease, err := repo.Create(ctx, entity.NewJob("busy", time.Now()))
	require.NoError(t, err)
	_, err = repo.Update(ctx, lease, func(j *entity.Job) error {
		if err := j.Transition(constants.JobStatusQueued, time.Now()); err != nil {
			return err
		}
		return j.Transition(constants.JobStatusProcessing, time.Now())
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := 0; p <= 100; p += 5 {
			_, err := repo.Update(ctx, lease, func(j *entity.Job) error {
				return j.SetProgress(p, "draft", time.Now())
			})
			assert.NoError(t, err)
		}
	}()
	last := 0
	for range 200 {
		got, err := repo.Get(ctx, "busy")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.ProgressPercent, last)
		last = got.ProgressPercent
	}
	wg.Wait()
}
