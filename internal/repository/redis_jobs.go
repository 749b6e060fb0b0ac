package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

const (
	redisJobPrefix   = "job:"
	redisLeaseSuffix = ":lease"
	redisJobIndex    = "jobs:by_created"
	redisTxRetries   = 5
)

// RedisJobRepository keeps jobs as JSON documents with a TTL. Updates run under
// WATCH so a concurrent write aborts the transaction instead of being lost.
type RedisJobRepository struct {
	rdb redis.UniversalClient
	ttl time.Duration
	log *slog.Logger
}

func NewRedisJobRepository(rdb redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisJobRepository {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobRepository{rdb: rdb, ttl: ttl, log: log}
}

func jobKey(id string) string   { return redisJobPrefix + id }
func leaseKey(id string) string { return redisJobPrefix + id + redisLeaseSuffix }

func (r *RedisJobRepository) Create(ctx context.Context, job *entity.Job) (entity.Lease, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return entity.Lease{}, fmt.Errorf("encode job: %w", err)
	}
	lease := newLease(job.ID)
	ok, err := r.rdb.SetNX(ctx, leaseKey(job.ID), lease.Token, r.ttl).Result()
	if err != nil {
		return entity.Lease{}, fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !ok {
		return entity.Lease{}, fmt.Errorf("job %s already exists", job.ID)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, jobKey(job.ID), doc, r.ttl)
		p.ZAdd(ctx, redisJobIndex, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID})
		return nil
	})
	if err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return entity.Lease{}, fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return lease, nil
}

func (r *RedisJobRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	doc, err := r.rdb.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(doc)
}

func (r *RedisJobRepository) Update(ctx context.Context, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error) {
	var out *entity.Job
	txf := func(tx *redis.Tx) error {
		token, err := tx.Get(ctx, leaseKey(lease.JobID)).Result()
		if errors.Is(err, redis.Nil) {
			return notFound(lease.JobID)
		}
		if err != nil {
			return err
		}
		if token != lease.Token {
			r.log.Warn("job update rejected: lease mismatch", "job_id", lease.JobID)
			return leaseMismatch(lease.JobID)
		}
		doc, err := tx.Get(ctx, jobKey(lease.JobID)).Result()
		if errors.Is(err, redis.Nil) {
			return notFound(lease.JobID)
		}
		if err != nil {
			return err
		}
		job, err := decodeJob(doc)
		if err != nil {
			return err
		}
		if err := mutate(job); err != nil {
			return err
		}
		next, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, jobKey(lease.JobID), next, r.ttl)
			p.Expire(ctx, leaseKey(lease.JobID), r.ttl)
			return nil
		})
		if err == nil {
			out = job
		}
		return err
	}

	for range redisTxRetries {
		err := r.rdb.Watch(ctx, txf, jobKey(lease.JobID), leaseKey(lease.JobID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update job %s: too much contention", lease.JobID)
}

func (r *RedisJobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ids, err := r.rdb.ZRevRange(ctx, redisJobIndex, 0, int64(limit*2)).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := []*entity.Job{}
	var stale []any
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		job, err := r.Get(ctx, id)
		if err != nil {
			stale = append(stale, id)
			continue
		}
		out = append(out, job)
	}
	if len(stale) > 0 {
		// Documents expired through their TTL; drop them from the index.
		_ = r.rdb.ZRem(ctx, redisJobIndex, stale...).Err()
	}
	return out, nil
}
