// Package storage keeps the content of ledger document attachments in an
// S3 compatible bucket, or in memory for development and tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultRegion         = "us-east-1"
	defaultPresignTimeout = 15 * time.Minute
)

var (
	_ ledgerapp.DocumentStore  = (*S3DocumentStore)(nil)
	_ ledgerapp.DocumentLinker = (*S3DocumentStore)(nil)

	errEmptyKey = errors.New("storage key is required")
)

// missingCodes are the API error codes S3 and its look-alikes use for an
// absent bucket or object. HEAD responses carry no body, so some backends
// only report the bare status text.
var missingCodes = map[string]bool{
	"NotFound":     true,
	"NoSuchKey":    true,
	"NoSuchBucket": true,
	"404":          true,
}

// S3DocumentStore keeps document content in one bucket of any S3
// compatible backend (AWS, MinIO, RustFS).
type S3DocumentStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	linkTTL time.Duration
	encrypt bool
	log     *zap.Logger
}

// S3DocumentStoreOption configures an S3DocumentStore
type S3DocumentStoreOption func(*S3DocumentStore)

// WithLogger sets the store's logger
func WithLogger(log *zap.Logger) S3DocumentStoreOption {
	return func(s *S3DocumentStore) { s.log = log }
}

// WithPresignExpiration overrides how long download links stay valid
func WithPresignExpiration(d time.Duration) S3DocumentStoreOption {
	return func(s *S3DocumentStore) { s.linkTTL = d }
}

// NewS3DocumentStore builds a store from cfg. Static keys are used when
// configured, the default AWS credential chain otherwise.
func NewS3DocumentStore(ctx context.Context, cfg *config.StorageConfig, opts ...S3DocumentStoreOption) (*S3DocumentStore, error) {
	if err := checkStorageConfig(cfg); err != nil {
		return nil, err
	}
	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	s := &S3DocumentStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		linkTTL: cfg.PresignExpiration,
		encrypt: cfg.Encrypt,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.linkTTL <= 0 {
		s.linkTTL = defaultPresignTimeout
	}
	s.log = s.log.With(zap.String("bucket", s.bucket))
	return s, nil
}

func checkStorageConfig(cfg *config.StorageConfig) error {
	switch {
	case cfg == nil:
		return errors.New("storage configuration is required")
	case cfg.Bucket == "":
		return errors.New("storage bucket is required")
	case (cfg.AccessKey == "") != (cfg.SecretKey == ""):
		return errors.New("storage access key and secret key must be set together")
	}
	return nil
}

func loadOptions(cfg *config.StorageConfig) []func(*awsconfig.LoadOptions) error {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	return opts
}

// normalizeEndpoint gives a bare host:port endpoint a scheme. Empty means
// AWS itself.
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid storage endpoint %q", endpoint)
	}
	return endpoint, nil
}

// isMissing reports whether err means the bucket or object does not exist
func isMissing(err error) bool {
	var (
		notFound *types.NotFound
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		apiErr   smithy.APIError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noKey), errors.As(err, &noBucket):
		return true
	case errors.As(err, &apiErr):
		return missingCodes[apiErr.ErrorCode()]
	}
	return false
}

// EnsureBucket creates the bucket when it is missing. Losing the creation
// race to another replica is not an error.
func (s *S3DocumentStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	switch {
	case err == nil:
		return nil
	case !isMissing(err):
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	s.log.Info("Creating document bucket")
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores document content under key
func (s *S3DocumentStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errEmptyKey
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if s.encrypt {
		in.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.log.Debug("Document stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// DeleteObject removes key. Deleting an absent key succeeds.
func (s *S3DocumentStore) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return errEmptyKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isMissing(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ObjectExists reports whether key is stored
func (s *S3DocumentStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errEmptyKey
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return true, nil
	case isMissing(err):
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}

// PresignDownload returns a GET link for key and the time it stops
// working. A non-positive ttl uses the store default.
func (s *S3DocumentStore) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errEmptyKey
	}
	if ttl <= 0 {
		ttl = s.linkTTL
	}
	issued := time.Now()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, issued.Add(ttl), nil
}

// Bucket returns the bucket name
func (s *S3DocumentStore) Bucket() string { return s.bucket }
