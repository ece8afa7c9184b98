package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	gobreaker "github.com/sony/gobreaker/v2"
)

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// BreakerConfig tunes the circuit breaker around the object store.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// DefaultBreakerConfig trips after five consecutive failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// MinioStore implements ImageStore on MinIO.
type MinioStore struct {
	api     objectAPI
	bucket  string
	baseURL string
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// MinioConfig describes the MinIO connection.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioClient connects to MinIO and creates the bucket if it is missing.
func NewMinioClient(ctx context.Context, cfg MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return client, nil
}

// NewMinioStore wraps api with a circuit breaker.
func NewMinioStore(api objectAPI, bucket, baseURL string, bc BreakerConfig, logger *slog.Logger) *MinioStore {
	settings := gobreaker.Settings{
		Name:    "minio",
		Timeout: bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &MinioStore{
		api:     api,
		bucket:  bucket,
		baseURL: baseURL,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.breaker.Execute(func() (any, error) {
		return s.api.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return ObjectURL(s.baseURL, s.bucket, key), nil
}

func (s *MinioStore) Delete(ctx context.Context, objectURL string) error {
	key, err := KeyFromURL(objectURL, s.bucket)
	if err != nil {
		return err
	}
	_, err = s.breaker.Execute(func() (any, error) {
		return nil, s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// State reports the breaker state; /health exposes it.
func (s *MinioStore) State() string {
	return s.breaker.State().String()
}
