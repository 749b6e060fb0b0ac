package repository

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// JobRepository stores jobs. Create hands out the only lease able to update the
// job; Update rejects any other lease with common.ErrLeaseMismatch. Every job
// returned is a deep copy.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) (entity.Lease, error)
	Get(ctx context.Context, id string) (*entity.Job, error)
	// Update applies mutate to a copy of the job and stores it when mutate succeeds.
	Update(ctx context.Context, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error)
	// List returns the most recently created jobs first.
	List(ctx context.Context, limit int) ([]*entity.Job, error)
}

func newLease(jobID string) entity.Lease {
	return entity.Lease{JobID: jobID, Token: uuid.NewString()}
}

func notFound(id string) error {
	return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
}

func leaseMismatch(id string) error {
	return fmt.Errorf("job %s: %w", id, common.ErrLeaseMismatch)
}

type memoryRecord struct {
	job   *entity.Job
	token string
}

// MemoryJobRepository keeps jobs in process memory. State is lost on restart.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*memoryRecord
	log  *slog.Logger
}

func NewMemoryJobRepository(log *slog.Logger) *MemoryJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryJobRepository{jobs: map[string]*memoryRecord{}, log: log}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *entity.Job) (entity.Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.ID]; dup {
		return entity.Lease{}, fmt.Errorf("job %s already exists: %w", job.ID, common.ErrInvalidInput)
	}
	lease := newLease(job.ID)
	r.jobs[job.ID] = &memoryRecord{job: job.Clone(), token: lease.Token}
	r.log.Debug("job created", "job_id", job.ID)
	return lease, nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id string) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return rec.job.Clone(), nil
}

func (r *MemoryJobRepository) Update(_ context.Context, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[lease.JobID]
	if !ok {
		return nil, notFound(lease.JobID)
	}
	if rec.token != lease.Token {
		r.log.Warn("job update rejected: lease mismatch", "job_id", lease.JobID)
		return nil, leaseMismatch(lease.JobID)
	}
	next := rec.job.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	rec.job = next
	return next.Clone(), nil
}

func (r *MemoryJobRepository) List(_ context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	r.mu.RLock()
	out := make([]*entity.Job, 0, len(r.jobs))
	for _, rec := range r.jobs {
		out = append(out, rec.job.Clone())
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *entity.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out[:min(limit, len(out))], nil
}
