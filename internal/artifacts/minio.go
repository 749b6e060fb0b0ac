package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/content-engine/internal/entity"
)

// MinioArchiver uploads <job id>/article.md and result.json to a bucket.
type MinioArchiver struct {
	client *minio.Client
	// put uploads one object; tests replace it.
	put    func(ctx context.Context, key string, data []byte, contentType string) error
	bucket string
	logger *slog.Logger
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// NewMinioArchiver connects and creates the bucket when it does not exist.
func NewMinioArchiver(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinioArchiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("artifacts.minio.bucket_created", "bucket", cfg.Bucket)
	}
	a := &MinioArchiver{client: client, bucket: cfg.Bucket, logger: logger}
	a.put = a.putObject
	return a, nil
}

func (a *MinioArchiver) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (a *MinioArchiver) Archive(ctx context.Context, jobID string, r *entity.PipelineResult) (string, error) {
	if err := checkJobID(jobID); err != nil {
		return "", err
	}
	md, js, err := render(jobID, r)
	if err != nil {
		return "", err
	}
	articleKey := path.Join(jobID, articleName)
	if err := a.put(ctx, articleKey, md, "text/markdown; charset=utf-8"); err != nil {
		return "", err
	}
	if err := a.put(ctx, path.Join(jobID, resultName), js, "application/json"); err != nil {
		return "", err
	}
	a.logger.Debug("artifacts.minio.uploaded", "job_id", jobID, "bucket", a.bucket, "key", articleKey)
	return fmt.Sprintf("s3://%s/%s", a.bucket, articleKey), nil
}
