package interlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// Corpus supplies the default content items when a query carries none.
type Corpus interface {
	Items(ctx context.Context) ([]entity.ContentItem, error)
}

// StaticCorpus is a fixed in-memory corpus.
type StaticCorpus []entity.ContentItem

func (s StaticCorpus) Items(context.Context) ([]entity.ContentItem, error) {
	return slices.Clone(s), nil
}

type corpusDoc struct {
	Items []entity.ContentItem `json:"items" yaml:"items"`
}

// ParseCorpus decodes a corpus from JSON or YAML. The document is either a list of
// items or an object with an "items" list. Items are validated and ids must be unique.
func ParseCorpus(data []byte, ext string) ([]entity.ContentItem, error) {
	var items []entity.ContentItem
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []entity.ContentItem{}, nil
	}
	if constants.IsYAMLExt(ext) {
		if err := yaml.Unmarshal(data, &items); err != nil {
			var doc corpusDoc
			if derr := yaml.Unmarshal(data, &doc); derr != nil {
				return nil, fmt.Errorf("decode yaml corpus: %w", err)
			}
			items = doc.Items
		}
	} else {
		if data[0] == '{' {
			var doc corpusDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("decode json corpus: %w", err)
			}
			items = doc.Items
		} else if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode json corpus: %w", err)
		}
	}

	v := common.NewValidator()
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if err := common.ValidateStruct(item); err != nil {
			v.Add(fmt.Sprintf("items[%d]", i), item.ID, err.Error())
		}
		if _, dup := seen[item.ID]; dup {
			v.Add(fmt.Sprintf("items[%d].id", i), item.ID, "is duplicated")
		}
		seen[item.ID] = struct{}{}
	}
	if err := v.Error(); err != nil {
		return nil, err
	}
	if items == nil {
		items = []entity.ContentItem{}
	}
	return items, nil
}

// LoadCorpusFile reads a .json, .yaml or .yml corpus file.
func LoadCorpusFile(path string) ([]entity.ContentItem, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.CorpusExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: unsupported corpus file extension %q", common.ErrInvalidInput, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return ParseCorpus(data, ext)
}

// FileCorpus serves a corpus file and can reload it when the file changes.
type FileCorpus struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	items    []entity.ContentItem
	loadedAt time.Time
}

// NewFileCorpus loads path once. Call Watch to keep it fresh.
func NewFileCorpus(path string, logger *slog.Logger) (*FileCorpus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &FileCorpus{path: path, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FileCorpus) Items(context.Context) ([]entity.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items), nil
}

// Reload re-reads the file. On error the previous items stay in place.
func (c *FileCorpus) Reload() error {
	items, err := LoadCorpusFile(c.path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = items
	c.loadedAt = time.Now()
	c.mu.Unlock()
	c.logger.Info("corpus.loaded", "path", c.path, "items", len(items))
	return nil
}

// LoadedAt is the time of the last successful load.
func (c *FileCorpus) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Watch reloads the corpus whenever its file is written or replaced, until ctx ends.
func (c *FileCorpus) Watch(ctx context.Context, debounce time.Duration) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Files:    []string{c.path},
		Debounce: debounce,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := c.Reload(); err != nil {
					c.logger.Warn("corpus.reload_failed", "path", c.path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				c.logger.Warn("corpus.watch_error", "path", c.path, "error", err)
			}
		}
	}()
	return nil
}
