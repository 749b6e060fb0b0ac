package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// ContentRepository stores the published content corpus used for interlinking.
type ContentRepository interface {
	Upsert(ctx context.Context, items []entity.ContentItem) error
	Items(ctx context.Context) ([]entity.ContentItem, error)
	Delete(ctx context.Context, id string) error
}

type sqlContentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewContentRepository(db *DB, log *slog.Logger) ContentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &sqlContentRepo{db: db, log: log}
}

func (r *sqlContentRepo) Upsert(ctx context.Context, items []entity.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	ins := entsql.Dialect(r.db.Dialect()).Insert("content_items").
		Columns("id", "title", "url", "slug", "keywords", "published_at")
	for _, it := range items {
		kw, err := json.Marshal(it.Keywords)
		if err != nil {
			return fmt.Errorf("encode keywords of %s: %w", it.ID, err)
		}
		var published any
		if it.PublishedAt != nil {
			published = it.PublishedAt.UnixNano()
		}
		ins.Values(it.ID, it.Title, it.URL, it.Slug, string(kw), published)
	}
	query, args := ins.OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("content upsert failed", "items", len(items), "err", err)
		return fmt.Errorf("upsert content items: %w", err)
	}
	r.log.Info("content items upserted", "items", len(items))
	return nil
}

func (r *sqlContentRepo) Items(ctx context.Context) ([]entity.ContentItem, error) {
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select("id", "title", "url", "slug", "keywords", "published_at").
		From(b.Table("content_items")).
		OrderExpr(entsql.Expr("id ASC")).
		Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("select content items: %w", err)
	}
	defer rows.Close()
	out := []entity.ContentItem{}
	for rows.Next() {
		var (
			it        entity.ContentItem
			keywords  string
			published stdsql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.URL, &it.Slug, &keywords, &published); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &it.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of %s: %w", it.ID, err)
		}
		if published.Valid {
			t := time.Unix(0, published.Int64).UTC()
			it.PublishedAt = &t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *sqlContentRepo) Delete(ctx context.Context, id string) error {
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Delete("content_items").Where(entsql.EQ("id", id)).Query()
	var res stdsql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("delete content item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("content item %s: %w", id, common.ErrNotFound)
	}
	return nil
}
