package artifacts

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/content-engine/internal/common"
	"github.com/joseph-ayodele/content-engine/internal/entity"
)

type Archiver interface {
	Archive(ctx context.Context, jobID string, r *entity.PipelineResult) (string, error)
}

// New picks MinIO when an endpoint is configured, else a local directory, else
// nothing (nil archiver, nil error).
func New(ctx context.Context, cfg common.ArtifactsConfig, logger *slog.Logger) (Archiver, error) {
	switch {
	case cfg.MinioEndpoint != "":
		bucket := cfg.MinioBucket
		if bucket == "" {
			bucket = "content-artifacts"
		}
		return NewMinioArchiver(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    bucket,
			Secure:    cfg.MinioSecure,
		}, logger)
	case cfg.Dir != "":
		return NewDirArchiver(cfg.Dir, logger)
	default:
		return nil, nil
	}
}
