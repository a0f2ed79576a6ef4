// Package photos uploads task photos to S3.
package photos

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"teamops/internal/config"
)

// PutObjectAPI is the part of the S3 client the store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Store struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// NewS3Client builds an S3 client from the shared AWS config for the given profile and region.
func NewS3Client(ctx context.Context, cfg config.PhotoConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// FromConfig returns a Store for cfg, or nil when no bucket is configured.
func FromConfig(ctx context.Context, cfg config.PhotoConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

// Put uploads body under the store prefix and returns an s3:// reference.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	full := path.Join(strings.Trim(s.Prefix, "/"), strings.TrimLeft(key, "/"))
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(full),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.Client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", full, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, full), nil
}
