package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// DirArchiver writes <dir>/<job id>/article.md and result.json.
type DirArchiver struct {
	dir    string
	logger *slog.Logger
}

func NewDirArchiver(dir string, logger *slog.Logger) (*DirArchiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DirArchiver{dir: abs, logger: logger}, nil
}

func (a *DirArchiver) Archive(ctx context.Context, jobID string, r *entity.PipelineResult) (string, error) {
	if err := checkJobID(jobID); err != nil {
		return "", err
	}
	md, js, err := render(jobID, r)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(a.dir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	article := filepath.Join(dir, articleName)
	if err := writeFileAtomic(article, md); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(dir, resultName), js); err != nil {
		return "", err
	}
	a.logger.Debug("artifacts.dir.written", "job_id", jobID, "path", article)
	return "file://" + filepath.ToSlash(article), nil
}

// writeFileAtomic writes through a temp file so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func checkJobID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: bad job id %q for an artifact path", common.ErrInvalidInput, id)
	}
	return nil
}
