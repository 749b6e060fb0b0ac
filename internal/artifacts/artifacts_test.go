package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResult() *entity.PipelineResult {
	return &entity.PipelineResult{
		Title:            "Go Concurrency",
		MetaTitle:        "Go Concurrency Guide",
		MetaDescription:  "Goroutines and channels.",
		SemanticKeywords: []string{"goroutines", "channels"},
		FinalText:        "# Go Concurrency\n\nGoroutines are cheap.",
		WordCount:        5,
		QualityScore:     &entity.QualityScore{Overall: 71.5, Dimensions: map[string]float64{}},
	}
}

func TestMarkdownFrontMatter(t *testing.T) {
	md, err := Markdown("job-1", sampleResult())
	require.NoError(t, err)

	parts := strings.SplitN(string(md), "---\n", 3)
	require.Len(t, parts, 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Go Concurrency", fm.Title)
	assert.Equal(t, "job-1", fm.JobID)
	assert.Equal(t, 71.5, fm.QualityOverall)
	assert.Equal(t, []string{"goroutines", "channels"}, fm.Keywords)
	assert.Equal(t, "\n# Go Concurrency\n\nGoroutines are cheap.\n", parts[2])
}

func TestDirArchiver(t *testing.T) {
	root := t.TempDir()
	a, err := NewDirArchiver(filepath.Join(root, "out"), quietLogger())
	require.NoError(t, err)

	uri, err := a.Archive(context.Background(), "job-1", sampleResult())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, "/job-1/article.md"))

	js, err := os.ReadFile(filepath.Join(root, "out", "job-1", resultName))
	require.NoError(t, err)
	var back entity.PipelineResult
	require.NoError(t, json.Unmarshal(js, &back))
	assert.Equal(t, "Go Concurrency Guide", back.MetaTitle)

	_, err = a.Archive(context.Background(), "../escape", sampleResult())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = a.Archive(context.Background(), "job-2", nil)
	assert.Error(t, err)
}

func TestMinioArchiverKeys(t *testing.T) {
	uploaded := map[string]string{}
	a := &MinioArchiver{bucket: "articles", logger: quietLogger()}
	a.put = func(_ context.Context, key string, data []byte, contentType string) error {
		uploaded[key] = contentType
		return nil
	}

	uri, err := a.Archive(context.Background(), "job-9", sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "s3://articles/job-9/article.md", uri)
	assert.Equal(t, map[string]string{
		"job-9/article.md":  "text/markdown; charset=utf-8",
		"job-9/result.json": "application/json",
	}, uploaded)

	a.put = func(context.Context, string, []byte, string) error { return errors.New("access denied") }
	_, err = a.Archive(context.Background(), "job-9", sampleResult())
	assert.ErrorContains(t, err, "access denied")
}

func TestNewWithoutConfig(t *testing.T) {
	a, err := New(context.Background(), common.ArtifactsConfig{}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = New(context.Background(), common.ArtifactsConfig{Dir: t.TempDir()}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &DirArchiver{}, a)
}
