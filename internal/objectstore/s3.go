package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// S3Store implements Store for s3:// references using the AWS SDK default
// credential chain.
type S3Store struct {
	downloader *manager.Downloader
	logger     *slog.Logger
}

// NewS3Store creates an S3Store.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Store{
		downloader: manager.NewDownloader(client),
		logger:     logger.With("component", "objectstore"),
	}, nil
}

// Download fetches an s3://bucket/key object into destDir, returning the
// local path. Already-downloaded objects are reused.
func (s *S3Store) Download(ctx context.Context, path, destDir string) (string, error) {
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	local := filepath.Join(destDir, filepath.Base(key))
	if info, err := os.Stat(local); err == nil && info.Size() > 0 {
		return local, nil
	}

	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", local, err)
	}
	defer f.Close()

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		os.Remove(local)
		return "", fmt.Errorf("download %s: %w", path, err)
	}
	s.logger.Info("downloaded remote input",
		"path", path, "local", local, "size", humanize.Bytes(uint64(n)))
	return local, nil
}

// parseS3Path splits s3://bucket/key into bucket and key.
func parseS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 path: %s", path)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 path: %s", path)
	}
	return parts[0], parts[1], nil
}
