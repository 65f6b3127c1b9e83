package sink

import (
	"context"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/salespipe/internal/logging"
)

// PutObjectAPI is the slice of the S3 client the mirror needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds configuration for the result mirror.
type S3Config struct {
	Bucket string
	Prefix string
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Mirror writes through to another sink, then uploads the written file to
// s3://Bucket/Prefix<name>.csv. The local file stays authoritative: an upload
// failure fails the write so the caller records it against the file.
type S3Mirror struct {
	next       Sink
	client     PutObjectAPI
	bucket     string
	prefix     string
	maxRetries int
}

// NewS3Mirror builds an S3 client from the default AWS credential chain.
func NewS3Mirror(ctx context.Context, next Sink, cfg S3Config) (*S3Mirror, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3MirrorWithClient(next, s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewS3MirrorWithClient uses a pre-configured client.
func NewS3MirrorWithClient(next Sink, client PutObjectAPI, cfg S3Config) *S3Mirror {
	return &S3Mirror{
		next:       next,
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		maxRetries: 3,
	}
}

func (m *S3Mirror) Write(ctx context.Context, name string, t Table) (string, error) {
	local, err := m.next.Write(ctx, name, t)
	if err != nil {
		return "", err
	}

	key := path.Join(m.prefix, filepath.Base(local))
	if err := m.upload(ctx, local, key); err != nil {
		return local, fmt.Errorf("mirror %s to s3://%s/%s: %w", filepath.Base(local), m.bucket, key, err)
	}

	logging.FromContext(ctx).Debug("result mirrored", "bucket", m.bucket, "key", key)
	return local, nil
}

func (m *S3Mirror) upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return m.retryWithBackoff(ctx, func() error {
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String("text/csv"),
		})
		return err
	})
}

func (m *S3Mirror) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt < m.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
