package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

// frontMatter is the subset of article front matter an item is built from.
// Archived articles carry job_id and keywords; hand-written ones usually id and url.
type frontMatter struct {
	ID          string     `yaml:"id"`
	JobID       string     `yaml:"job_id"`
	Title       string     `yaml:"title"`
	URL         string     `yaml:"url"`
	Slug        string     `yaml:"slug"`
	Keywords    []string   `yaml:"keywords"`
	Tags        []string   `yaml:"tags"`
	PublishedAt *time.Time `yaml:"published_at"`
}

// ParseArticle builds a corpus item from one markdown document. rel is the path
// relative to the ingest root; it names the item when the front matter does not.
func ParseArticle(data []byte, rel, baseURL string, modTime time.Time) (entity.ContentItem, error) {
	var fm frontMatter
	body := data
	if head, rest, ok := splitFrontMatter(data); ok {
		if err := yaml.Unmarshal(head, &fm); err != nil {
			return entity.ContentItem{}, fmt.Errorf("%w: front matter: %v", common.ErrInvalidInput, err)
		}
		body = rest
	}

	slug := fm.Slug
	if slug == "" {
		slug = slugFromPath(rel)
	}
	item := entity.ContentItem{
		ID:          firstNonEmpty(fm.ID, fm.JobID, slug),
		Title:       strings.TrimSpace(fm.Title),
		URL:         fm.URL,
		Slug:        slug,
		Keywords:    append(append([]string{}, fm.Keywords...), fm.Tags...),
		PublishedAt: fm.PublishedAt,
	}
	if item.Title == "" {
		if hs := textutil.Headings(string(body)); len(hs) > 0 {
			item.Title = hs[0]
		}
	}
	if item.URL == "" && baseURL != "" {
		item.URL = strings.TrimRight(baseURL, "/") + "/" + slug
	}
	if item.PublishedAt == nil && !modTime.IsZero() {
		t := modTime.UTC()
		item.PublishedAt = &t
	}
	if err := common.ValidateStruct(item); err != nil {
		return entity.ContentItem{}, err
	}
	return item, nil
}

// ReadArticle reads and parses the file at path.
func ReadArticle(root, path, baseURL string) (entity.ContentItem, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.ContentItem{}, "", fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	info, err := os.Stat(path)
	if err != nil {
		return entity.ContentItem{}, "", fmt.Errorf("stat: %w", err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	item, err := ParseArticle(data, rel, baseURL, info.ModTime())
	return item, hex.EncodeToString(sum[:]), err
}

func splitFrontMatter(data []byte) (head, body []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return nil, data, false
	}
	rest := data[bytes.IndexByte(data, '\n')+1:]
	for off := 0; off < len(rest); {
		nl := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		if nl >= 0 {
			line = rest[off : off+nl]
		}
		if string(bytes.TrimRight(line, "\r")) == "---" {
			if nl < 0 {
				return rest[:off], nil, true
			}
			return rest[:off], rest[off+nl+1:], true
		}
		if nl < 0 {
			break
		}
		off += nl + 1
	}
	return nil, data, false
}

// slugFromPath maps "guides/go-channels/article.md" to "guides/go-channels".
func slugFromPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	if base := filepath.Base(rel); base == "article" || base == "index" {
		if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
			rel = dir
		}
	}
	return strings.Trim(rel, "/")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
