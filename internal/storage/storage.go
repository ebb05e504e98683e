// Package storage resolves post download links that are object keys rather
// than absolute URLs.
//
// Two providers exist:
// - LocalStorage: files under a directory, served by the app under a URL prefix
// - R2Storage: Cloudflare R2 (S3-compatible), handed out as presigned URLs
//
// Files are uploaded out of band; the portal only reads.
package storage

import (
	"context"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage resolves object keys to URLs a browser can fetch.
type Storage interface {
	// URL returns a URL for the object at key. Private objects get a
	// presigned URL valid for expires; zero selects DefaultURLExpiry.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// DefaultURLExpiry is the presigned URL lifetime when none is given.
const DefaultURLExpiry = 15 * time.Minute

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory holding the files.
	// Example: "./files" or "/var/lib/mundo/files"
	BasePath string

	// BaseURL is the public URL prefix the files are served under.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's public domain. When set, URL calls with a
	// zero expiry return a permanent public link instead of a presigned one.
	PublicURL string

	// Region is required by the SDK; R2 accepts "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)
