package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// SQLJobRepository stores each job as a JSON document next to its lease token.
// Updates run in a transaction and are conditional on the token.
type SQLJobRepository struct {
	db  *DB
	log *slog.Logger
}

func NewSQLJobRepository(db *DB, log *slog.Logger) *SQLJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &SQLJobRepository{db: db, log: log}
}

func (r *SQLJobRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *SQLJobRepository) Create(ctx context.Context, job *entity.Job) (entity.Lease, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return entity.Lease{}, fmt.Errorf("encode job: %w", err)
	}
	lease := newLease(job.ID)
	query, args := r.builder().Insert("jobs").
		Columns("id", "lease_token", "status", "created_at", "updated_at", "doc").
		Values(job.ID, lease.Token, string(job.Status), job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(), string(doc)).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return entity.Lease{}, fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	r.log.Debug("job created", "job_id", job.ID)
	return lease, nil
}

func (r *SQLJobRepository) Get(ctx context.Context, id string) (*entity.Job, error) {
	query, args := r.builder().Select("doc").
		From(r.builder().Table("jobs")).
		Where(entsql.EQ("id", id)).
		Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("select job %s: %w", id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, notFound(id)
	}
	var doc string
	if err := rows.Scan(&doc); err != nil {
		return nil, err
	}
	return decodeJob(doc)
}

func (r *SQLJobRepository) Update(ctx context.Context, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error) {
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	job, err := r.update(ctx, tx, lease, mutate)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			r.log.Warn("job update rollback failed", "job_id", lease.JobID, "err", rerr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit job %s: %w", lease.JobID, err)
	}
	return job, nil
}

func (r *SQLJobRepository) update(ctx context.Context, tx dialect.Tx, lease entity.Lease, mutate func(*entity.Job) error) (*entity.Job, error) {
	sel := r.builder().Select("lease_token", "doc").
		From(r.builder().Table("jobs")).
		Where(entsql.EQ("id", lease.JobID))
	if r.db.Dialect() == dialect.Postgres {
		sel = sel.ForUpdate()
	}
	query, args := sel.Query()
	var rows entsql.Rows
	if err := tx.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("select job %s: %w", lease.JobID, err)
	}
	var token, doc string
	found := rows.Next()
	if found {
		if err := rows.Scan(&token, &doc); err != nil {
			_ = rows.Close()
			return nil, err
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(lease.JobID)
	}
	if token != lease.Token {
		r.log.Warn("job update rejected: lease mismatch", "job_id", lease.JobID)
		return nil, leaseMismatch(lease.JobID)
	}

	job, err := decodeJob(doc)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	next, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	query, args = r.builder().Update("jobs").
		Set("status", string(job.Status)).
		Set("updated_at", job.UpdatedAt.UnixNano()).
		Set("doc", string(next)).
		Where(entsql.And(entsql.EQ("id", lease.JobID), entsql.EQ("lease_token", lease.Token))).
		Query()
	var res stdsql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return nil, fmt.Errorf("update job %s: %w", lease.JobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return nil, leaseMismatch(lease.JobID)
	}
	return job, nil
}

func (r *SQLJobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query, args := r.builder().Select("doc").
		From(r.builder().Table("jobs")).
		OrderExpr(entsql.Expr("created_at DESC, id ASC")).
		Limit(limit).
		Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	out := []*entity.Job{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		job, err := decodeJob(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func decodeJob(doc string) (*entity.Job, error) {
	var job entity.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.Warnings == nil {
		job.Warnings = []string{}
	}
	return &job, nil
}
