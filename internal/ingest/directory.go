package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

var markdownExts = map[string]struct{}{"md": {}, "markdown": {}}

// DirIngestor reads markdown articles from the local filesystem.
type DirIngestor struct {
	sink    Sink
	baseURL string
	logger  *slog.Logger
}

// NewDirIngestor returns an ingestor that builds missing URLs from baseURL.
func NewDirIngestor(sink Sink, baseURL string, logger *slog.Logger) *DirIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirIngestor{sink: sink, baseURL: baseURL, logger: logger}
}

// IngestDirectory walks root, skips hidden entries if requested, parses every
// markdown file and upserts the items in one batch. A file whose id was already
// seen in this walk is reported as replaced; the later file wins.
func (i *DirIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]ArticleResult, Stats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, Stats{}, errors.New("root_path is required")
	}
	start := time.Now()

	var (
		results []ArticleResult
		stats   Stats
		items   []entity.ContentItem
	)
	index := map[string]int{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Entries++
		if walkErr != nil {
			results = append(results, ArticleResult{Path: path, Err: walkErr})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := markdownExts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Articles++

		item, hash, err := ReadArticle(root, path, i.baseURL)
		if err != nil {
			results = append(results, ArticleResult{Path: path, Err: err})
			stats.Failed++
			return nil
		}
		r := ArticleResult{Path: path, ItemID: item.ID, Digest: hash}
		if at, dup := index[item.ID]; dup {
			items[at] = item
			r.Replaced = true
			stats.Replaced++
		} else {
			index[item.ID] = len(items)
			items = append(items, item)
		}
		results = append(results, r)
		stats.Parsed++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	if len(items) > 0 {
		if err := i.sink.Upsert(ctx, items); err != nil {
			return results, stats, fmt.Errorf("store items: %w", err)
		}
	}
	i.logger.Info("ingest.directory.ok",
		"root", root,
		"articles", stats.Articles,
		"stored", len(items),
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
