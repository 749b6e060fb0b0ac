// Package artifacts archives finished articles as markdown plus the full result JSON.
package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

const (
	articleName = "article.md"
	resultName  = "result.json"
)

type frontMatter struct {
	Title           string   `yaml:"title"`
	MetaTitle       string   `yaml:"meta_title,omitempty"`
	MetaDescription string   `yaml:"meta_description,omitempty"`
	Keywords        []string `yaml:"keywords,omitempty"`
	SearchIntent    string   `yaml:"search_intent,omitempty"`
	WordCount       int      `yaml:"word_count"`
	QualityOverall  float64  `yaml:"quality_overall"`
	JobID           string   `yaml:"job_id"`
}

// Markdown renders the article with a YAML front matter block.
func Markdown(jobID string, r *entity.PipelineResult) ([]byte, error) {
	fm := frontMatter{
		Title:           r.Title,
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		Keywords:        r.SemanticKeywords,
		SearchIntent:    string(r.SearchIntent),
		WordCount:       r.WordCount,
		JobID:           jobID,
	}
	if r.QualityScore != nil {
		fm.QualityOverall = r.QualityScore.Overall
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("render front matter: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	b.WriteString(r.FinalText)
	if !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// ResultJSON renders the full pipeline result.
func ResultJSON(r *entity.PipelineResult) ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render result: %w", err)
	}
	return b, nil
}

func render(jobID string, r *entity.PipelineResult) (md, js []byte, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("nothing to archive for job %s", jobID)
	}
	if md, err = Markdown(jobID, r); err != nil {
		return nil, nil, err
	}
	if js, err = ResultJSON(r); err != nil {
		return nil, nil, err
	}
	return md, js, nil
}
