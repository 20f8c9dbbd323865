package dataproduct

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/petrsabatka/hw-backend-functions/pkg/config"
)

// S3Storage implements ObjectStorage over an S3 (or S3-compatible) bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// NewS3Storage builds an S3Storage from the object storage configuration.
// Credentials come from the standard AWS credential chain.
func NewS3Storage(ctx context.Context, cfg config.ObjectStorageConfig, logger *slog.Logger) (*S3Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to artifact repository",
		"bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// ListDirs lists every object under prefix and returns the directory part of
// each key, relative to prefix. Keys directly under prefix are skipped.
func (s *S3Storage) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	var dirs []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			rel := trimPrefixSlash(aws.ToString(obj.Key), prefix)
			if dir := path.Dir(rel); dir != "." && dir != "/" {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs, nil
}

// Download copies every object under src into dest, recreating the tree
// rooted at src's final path element.
func (s *S3Storage) Download(ctx context.Context, src, dest string) error {
	root := filepath.Join(dest, path.Base(src))

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(src + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects under %s: %w", src, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := trimPrefixSlash(key, src)
			if rel == "" {
				continue
			}
			if err := s.downloadObject(ctx, key, filepath.Join(root, filepath.FromSlash(rel))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3Storage) downloadObject(ctx context.Context, key, local string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", local, err)
	}
	file, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("write %s: %w", local, err)
	}
	return nil
}

func trimPrefixSlash(key, prefix string) string {
	rel := key
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		rel = key[len(prefix):]
	}
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return rel
}
