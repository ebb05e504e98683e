package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage serves files from a directory. The app mounts BasePath under
// BaseURL with a file server; links never expire.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates a LocalStorage, creating the base directory if
// needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	logger.Info("initialized local storage",
		"base_path", absPath,
		"base_url", baseURL,
	)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  baseURL,
		logger:   logger,
	}, nil
}

// BasePath returns the absolute directory the files live in.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// URL returns the public URL of key. expires is ignored.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	return fmt.Sprintf("%s/%s", s.baseURL, strings.TrimPrefix(key, "/")), nil
}

// Exists checks if a file exists at key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "Exists", Key: key, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	return !info.IsDir(), nil
}

// resolvePath converts a key to a path inside basePath, rejecting anything
// that would escape it.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(strings.TrimPrefix(key, "/"))
	if cleanKey == "." || strings.Contains(cleanKey, "..") {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}

var _ Storage = (*LocalStorage)(nil)
