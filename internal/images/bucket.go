// Package images fetches rendered object images from an S3-compatible
// bucket (DigitalOcean Spaces, MinIO, AWS) and caches them on local disk.
package images

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/johnnygreco/viz-inspect/internal/config"
)

const presignExpiry = 15 * time.Minute

// Service resolves object image references to something a browser can
// load: a presigned bucket URL when a bucket is configured, otherwise a
// locally cached file served by the static handler.
type Service struct {
	cfg      config.BucketConfig
	cacheDir string
	client   *s3.Client
	presign  *s3.PresignClient
}

// NewService builds the bucket client. With no bucket name configured the
// service runs in local-only mode and serves images straight from the
// cache directory.
func NewService(cfg config.BucketConfig, cacheDir string) (*Service, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create image cache dir")
	}

	s := &Service{cfg: cfg, cacheDir: cacheDir}
	if cfg.Bucket == "" {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, errors.Wrap(err, "load bucket credentials")
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// Spaces and MinIO want path-style addressing
		o.UsePathStyle = true
	})
	s.presign = s3.NewPresignClient(s.client)
	return s, nil
}

// BucketConfigured reports whether a remote bucket is in use.
func (s *Service) BucketConfigured() bool {
	return s.client != nil
}

// CacheDir returns the local image cache directory.
func (s *Service) CacheDir() string {
	return s.cacheDir
}

// PresignedURL returns a time-limited GET URL for an image key.
func (s *Service) PresignedURL(ctx context.Context, key string) (string, error) {
	if s.presign == nil {
		return "", errors.New("no bucket configured")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", errors.Wrapf(err, "presign image %s", key)
	}
	return req.URL, nil
}

// FetchToCache downloads an image key into the local cache, skipping the
// download when the cached copy already exists. Returns the local path.
func (s *Service) FetchToCache(ctx context.Context, key string) (string, error) {
	local := filepath.Join(s.cacheDir, filepath.Base(key))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if s.client == nil {
		return "", errors.Errorf("image %s not in cache and no bucket configured", key)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return "", errors.Wrapf(err, "fetch image %s", key)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(s.cacheDir, ".download-*")
	if err != nil {
		return "", errors.Wrap(err, "create cache file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "write image %s", key)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", errors.Wrap(err, "move image into cache")
	}
	return local, nil
}

func (s *Service) objectKey(key string) string {
	if s.cfg.KeyPrefix == "" {
		return key
	}
	return path.Join(s.cfg.KeyPrefix, key)
}
