// Package ingest turns a directory of markdown articles into interlinking corpus items.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// ArticleResult is what happened to one markdown file.
type ArticleResult struct {
	Path     string
	ItemID   string
	Digest   string // sha256 of the file, hex
	Replaced bool   // a later file in the same walk carried the same id
	Err      error
}

// Stats counts a directory walk. Parsed includes Replaced.
type Stats struct {
	Entries  int
	Articles int
	Parsed   int
	Replaced int
	Failed   int
}

// Sink stores the items read from a directory.
type Sink interface {
	Upsert(ctx context.Context, items []entity.ContentItem) error
}
