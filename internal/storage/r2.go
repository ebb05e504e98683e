package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// objectHeader is the part of the S3 client R2Storage calls directly.
type objectHeader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// R2Storage resolves keys in a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client     objectHeader
	presign    func(ctx context.Context, key string, expires time.Duration) (string, error)
	bucketName string
	publicURL  string
	logger     *slog.Logger
}

// NewR2Storage creates an R2Storage. The endpoint is derived from the
// account ID.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.AccountID == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("r2 storage requires an account id and bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
	})
	presignClient := s3.NewPresignClient(client)

	logger.Info("initialized R2 storage",
		"bucket", cfg.BucketName,
		"endpoint", endpoint,
		"public_url", cfg.PublicURL,
	)

	s := &R2Storage{
		client:     client,
		bucketName: cfg.BucketName,
		publicURL:  strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:     logger,
	}
	s.presign = func(ctx context.Context, key string, expires time.Duration) (string, error) {
		req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expires))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
	return s, nil
}

// URL returns a public link when a public domain is configured and expires
// is zero, otherwise a presigned GET URL.
func (s *R2Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}
	if expires == 0 {
		expires = DefaultURLExpiry
	}

	url, err := s.presign(ctx, key, expires)
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("failed to generate presigned URL: %w", err)}
	}
	return url, nil
}

// Exists issues a HEAD request for key.
func (s *R2Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		wrapped := wrapS3Error(err)
		if errors.Is(wrapped, ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapped}
	}
	return true, nil
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// wrapS3Error maps S3 SDK errors onto the package sentinels.
func wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}

	return fmt.Errorf("R2 operation failed: %w", err)
}

var _ Storage = (*R2Storage)(nil)
