package blob

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds explicit construction parameters. Credentials fall back to
// the default chain when the static keys are empty.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional, enables S3-compatible backends (MinIO)
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// S3Store implements Store on an S3-compatible backend. Single bucket, keys
// map to object keys directly.
type S3Store struct {
	client *s3.Client
	bucket string
	base   string
}

// NewS3Store creates an S3 blob store from S3Config.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	base := "https://" + cfg.Bucket + ".s3." + region + ".amazonaws.com"
	if cfg.Endpoint != "" {
		base = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Store{client: client, bucket: cfg.Bucket, base: base}, nil
}

// S3FromEnv constructs an S3 store from process environment:
// SST_BLOB_S3_BUCKET (required), SST_BLOB_S3_REGION, SST_BLOB_S3_ENDPOINT,
// SST_BLOB_S3_PATH_STYLE, plus the standard AWS credential variables.
func S3FromEnv(ctx context.Context) (*S3Store, error) {
	bucket := os.Getenv("SST_BLOB_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SST_BLOB_S3_BUCKET required for s3 driver")
	}
	return NewS3Store(ctx, S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("SST_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("SST_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("SST_BLOB_S3_PATH_STYLE"), "true"),
	})
}

// Upload writes data to the bucket and returns the object URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, kind string) (string, error) {
	key := newKey(kind)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", key, err)
	}
	return s.base + "/" + key, nil
}
