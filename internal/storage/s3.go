package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for an S3-compatible object store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: custom endpoint, e.g. a Cloudflare R2 account URL
	AccessKeyID     string // Optional: static access key ID
	SecretAccessKey string // Optional: static secret access key
	PublicBaseURL   string // Optional: base URL for served objects (R2 public bucket domain)
}

// S3Storage wraps LocalStorage and adds durable uploads to an
// S3-compatible bucket. It uses LocalStorage for transient staging and the
// bucket for final artifacts.
type S3Storage struct {
	*LocalStorage
	client        *s3.Client
	bucket        string
	region        string
	publicBaseURL string
}

// NewS3Storage creates a new S3Storage instance.
// The tempDir parameter specifies where transient files are staged.
// The cfg parameter contains bucket configuration. A non-empty Endpoint
// switches the client to path-style addressing for R2 and other
// S3-compatible stores.
func NewS3Storage(tempDir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		LocalStorage:  local,
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores data in the bucket and returns the public URL.
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload to blob store: %w", err)
	}

	return s.publicURL(key), nil
}

// publicURL builds the stable URL for a stored object. A configured public
// base URL (R2 public bucket domain) takes precedence over the virtual
// hosted-style AWS URL.
func (s *S3Storage) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
