package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrBadS3URL = errors.New("invalid s3 url")

// S3Config holds connection settings for the backup bucket.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Target stores backups as objects in one bucket.
type S3Target struct {
	client *s3.Client
	bucket string
}

// NewS3Target builds a client from the default AWS credential chain.
func NewS3Target(ctx context.Context, bucket string, cfg S3Config) (*S3Target, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
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
	return NewS3TargetWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket), nil
}

// NewS3TargetWithClient wraps a pre-configured client.
func NewS3TargetWithClient(client *s3.Client, bucket string) *S3Target {
	return &S3Target{client: client, bucket: bucket}
}

// Put uploads one backup object.
func (t *S3Target) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", t.bucket, key, err)
	}
	return nil
}

// Get downloads one backup object.
func (t *S3Target) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", t.bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// ParseS3URL splits "s3://bucket/key" into bucket and key. ok is false for
// anything that is not an s3 URL.
func ParseS3URL(raw string) (bucket, key string, ok bool, err error) {
	if !strings.HasPrefix(raw, "s3://") {
		return "", "", false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", true, fmt.Errorf("%w: %v", ErrBadS3URL, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", true, fmt.Errorf("%w: %s", ErrBadS3URL, raw)
	}
	return u.Host, key, true, nil
}

// ContentType returns the MIME type stored with a backup object.
func ContentType(f Format) string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
